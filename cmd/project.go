// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonical/task-service/internal/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var createProjectCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		var project types.Project
		err := newAPIClient().post(context.Background(), "/api/v0/projects", map[string]string{
			"name":        args[0],
			"description": description,
		}, &project)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		fmt.Printf("Project created: %s (ID: %s)\n", project.Name, project.ID)
		return nil
	},
}

var listProjectsCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects you own or belong to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var projects []types.Project
		if err := newAPIClient().get(context.Background(), "/api/v0/projects", &projects); err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tOWNER_ID\tARCHIVED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", p.ID, p.Name, p.OwnerID, p.Archived)
		}
		w.Flush()
		return nil
	},
}

var archiveProjectCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var project types.Project
		err := newAPIClient().patch(context.Background(), "/api/v0/projects/"+args[0], map[string]bool{
			"archived": true,
		}, &project)
		if err != nil {
			return fmt.Errorf("failed to archive project: %w", err)
		}

		fmt.Printf("Project archived: %s\n", project.ID)
		return nil
	},
}

var deleteProjectCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient().delete(context.Background(), "/api/v0/projects/"+args[0]); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		fmt.Printf("Project deleted: %s\n", args[0])
		return nil
	},
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage project members",
}

var listMembersCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List members of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var members []types.Membership
		err := newAPIClient().get(context.Background(), "/api/v0/projects/"+args[0]+"/members", &members)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "USER_ID\tROLE")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\n", m.UserID, m.Role)
		}
		w.Flush()
		return nil
	},
}

var addMemberCmd = &cobra.Command{
	Use:   "add [project-id] [email] [role]",
	Short: "Add a member to a project",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var member types.Membership
		err := newAPIClient().post(context.Background(), "/api/v0/projects/"+args[0]+"/members", map[string]string{
			"email": args[1],
			"role":  args[2],
		}, &member)
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		fmt.Printf("Member added: %s (%s)\n", member.UserID, member.Role)
		return nil
	},
}

var removeMemberCmd = &cobra.Command{
	Use:   "remove [project-id] [user-id]",
	Short: "Remove a member from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newAPIClient().delete(context.Background(), "/api/v0/projects/"+args[0]+"/members/"+args[1])
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}

		fmt.Printf("Member removed: %s\n", args[1])
		return nil
	},
}

func init() {
	createProjectCmd.Flags().String("description", "", "Project description")

	membersCmd.AddCommand(listMembersCmd)
	membersCmd.AddCommand(addMemberCmd)
	membersCmd.AddCommand(removeMemberCmd)

	projectCmd.AddCommand(createProjectCmd)
	projectCmd.AddCommand(listProjectsCmd)
	projectCmd.AddCommand(archiveProjectCmd)
	projectCmd.AddCommand(deleteProjectCmd)
	projectCmd.AddCommand(membersCmd)

	rootCmd.AddCommand(projectCmd)
}
