package main

import (
	"lecturevault/cmd/lecturevault/commands"
	"lecturevault/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
