// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonical/task-service/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var createTaskCmd = &cobra.Command{
	Use:   "create [project-id] [title]",
	Short: "Create a task in a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"title": args[1]}
		if description, _ := cmd.Flags().GetString("description"); description != "" {
			body["description"] = description
		}
		if priority, _ := cmd.Flags().GetString("priority"); priority != "" {
			body["priority"] = priority
		}
		if assignee, _ := cmd.Flags().GetString("assignee"); assignee != "" {
			body["assignee_id"] = assignee
		}

		var task types.Task
		err := newAPIClient().post(context.Background(), "/api/v0/projects/"+args[0]+"/tasks", body, &task)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		fmt.Printf("Task created: %s (ID: %s)\n", task.Title, task.ID)
		return nil
	},
}

var listTasksCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List tasks in a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			query.Set("status", status)
		}
		if assignee, _ := cmd.Flags().GetString("assignee"); assignee != "" {
			query.Set("assignee_id", assignee)
		}

		path := "/api/v0/projects/" + args[0] + "/tasks"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var tasks []types.Task
		if err := newAPIClient().get(context.Background(), path, &tasks); err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tASSIGNEE")
		for _, task := range tasks {
			assignee := ""
			if task.AssigneeID != nil {
				assignee = *task.AssigneeID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Title, task.Status, task.Priority, assignee)
		}
		w.Flush()
		return nil
	},
}

var setTaskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Update the status of a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var task types.Task
		err := newAPIClient().patch(context.Background(), "/api/v0/tasks/"+args[0], map[string]string{
			"status": args[1],
		}, &task)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		fmt.Printf("Task %s is now %s\n", task.ID, task.Status)
		return nil
	},
}

var deleteTaskCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient().delete(context.Background(), "/api/v0/tasks/"+args[0]); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}

		fmt.Printf("Task deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	createTaskCmd.Flags().String("description", "", "Task description")
	createTaskCmd.Flags().String("priority", "", "Task priority (low, medium, high)")
	createTaskCmd.Flags().String("assignee", "", "Assignee user ID")

	listTasksCmd.Flags().String("status", "", "Filter by status")
	listTasksCmd.Flags().String("assignee", "", "Filter by assignee user ID")

	taskCmd.AddCommand(createTaskCmd)
	taskCmd.AddCommand(listTasksCmd)
	taskCmd.AddCommand(setTaskStatusCmd)
	taskCmd.AddCommand(deleteTaskCmd)

	rootCmd.AddCommand(taskCmd)
}
