// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	agentsdk "github.com/absmach/acme-agent/sdk"
	"github.com/spf13/cobra"
)

// Keep SDK handle in global var.
var sdk agentsdk.SDK

func SetSDK(s agentsdk.SDK) {
	sdk = s
}

var cmdAgent = []cobra.Command{
	{
		Use:   "status",
		Short: "Get agent status",
		Long:  `Gets the managed certificate state and the pending renewal decision.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}
			status, err := sdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logJSONCmd(*cmd, status)
		},
	},
	{
		Use:   "renew",
		Short: "Renew certificate",
		Long:  `Triggers an immediate renewal regardless of the renewal policy.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}
			renewal, err := sdk.Renew()
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logJSONCmd(*cmd, renewal)
		},
	},
	{
		Use:   "revoke",
		Short: "Revoke certificate",
		Long:  `Asks the CA to revoke the installed certificate and marks the domain for renewal.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}
			if err := sdk.Revoke(); err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logOKCmd(*cmd)
		},
	},
	{
		Use:   "renewals [all | <domain>]",
		Short: "List renewal history",
		Long:  `Lists past renewal attempts, newest first, for all domains or one domain.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}
			pm := agentsdk.PageMetadata{
				Limit:  Limit,
				Offset: Offset,
			}
			if args[0] != "all" {
				pm.Domain = args[0]
			}
			page, err := sdk.Renewals(pm)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logJSONCmd(*cmd, page)
		},
	},
	{
		Use:   "health",
		Short: "Check agent health",
		Long:  `Checks that the agent is up and responding.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}
			health, err := sdk.Health()
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logJSONCmd(*cmd, health)
		},
	},
}

// NewAgentCmd returns the agent command.
func NewAgentCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "agent [status | renew | revoke | renewals | health]",
		Short: "Certificate agent management",
		Long:  `Certificate agent management: status, renew, revoke, renewal history, health.`,
	}

	for i := range cmdAgent {
		cmd.AddCommand(&cmdAgent[i])
	}

	return &cmd
}
