// Command statusbar prints the current speech-mode status as a single
// line of JSON, in the shape a Waybar custom module expects on its
// stdout. It takes no arguments and never blocks.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/speechdesk/speechdesk/internal/status"
)

func main() {
	report := status.Query()

	out, err := json.Marshal(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "statusbar: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
