package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API and job worker coordinator",
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}

		s, coordinator, bus, err := openCoordinator(rootCtx, b.DBPath)
		if err != nil {
			fail(exitIOErr, "%v", err)
		}
		defer s.Close()

		srv := httpapi.New(s, coordinator, bus, nil)
		fmt.Printf("listening on %s\n", b.Addr)
		if err := srv.Start(rootCtx, b.Addr); err != nil {
			fail(exitIOErr, "serve: %v", err)
		}
	},
}
