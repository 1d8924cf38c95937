// Command dongin は国語塾の受講生ポータルAPIサーバー。
//
//	dongin [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/dongin/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dongin: %v\n", err)
		os.Exit(1)
	}
}
