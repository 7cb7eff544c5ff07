// Command echo-sidecar is a minimal backplane sidecar: it acknowledges each
// work order with a short event sequence and a complete receipt. It doubles
// as a protocol smoke-test peer for the host.
package main

import (
	"github.com/Mindburn-Labs/backplane/pkg/sidecarkit"
)

func main() {
	sidecarkit.Serve(sidecarkit.EchoHandler{})
}
