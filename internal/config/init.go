package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# matrixci configuration
project:
  name: my-binding
  dir: .

matrix:
  os: [linux, osx]
  channels: [stable, beta, nightly]
  env:
    FEATURES: ""
  include:
    - os: linux
      channel: nightly
      env:
        FEATURES: "unstable"
  allow_failures:
    channels: [nightly]

steps:
  # Each job gets a private build-output directory, exported to step commands
  # as MATRIXCI_OUTPUT_DIR. Point the toolchain at it so concurrent jobs never
  # share artifacts.
  build: cargo build --verbose --features "$FEATURES" --target-dir "$MATRIXCI_OUTPUT_DIR"
  test: cargo test --verbose --features "$FEATURES" --target-dir "$MATRIXCI_OUTPUT_DIR"
  docs: cargo doc --no-deps --features "$FEATURES" --target-dir "$MATRIXCI_OUTPUT_DIR"
  timeout: 30m

libpath:
  os: linux
  variable: LD_LIBRARY_PATH
  patterns: # globs relative to the job's build-output directory
    - debug/build/*/out

publish:
  enabled: false
  branch: master
  os: linux
  channel: stable
  pages_branch: gh-pages
  remote_url: https://github.com/example/my-binding.git
  token_env: GH_TOKEN
  docs_dir: doc # relative to the publishing job's build-output directory

workspace:
  dir: ""
  keep: false

run:
  concurrency: 2

history:
  path: matrixci.db

events:
  enabled: false
  nats_url: nats://localhost:4222
  subject: matrixci.events

daemon:
  interval: 1h
  metrics_addr: ":9090"
  watch_config: true
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
