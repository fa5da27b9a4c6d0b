package prompts

import _ "embed"

//go:embed triage.yaml
var DefaultFlowConfig []byte
