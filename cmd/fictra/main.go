// Command fictra is the fiction translation sidecar: a JSON-RPC server for
// the desktop host plus a few terminal helpers.
package main

func main() {
	execute()
}
