package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"appforge/internal/orchestrator"

	"github.com/aquasecurity/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func newGenerateCmd() *cobra.Command {
	var name, imagePath, exportDir string

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate an application from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer engine.Close()

			spec := strings.Join(args, " ")
			if name == "" {
				name = "GeneratedApp"
			}

			req := orchestrator.GenerateRequest{ProjectName: name, Spec: spec}
			if imagePath != "" {
				data, mime, err := loadImage(imagePath)
				if err != nil {
					return err
				}
				req.Image = data
				req.ImageMIME = mime
			}

			projectID := engine.StartGenerate(req)
			fmt.Println(headerStyle.Render("Project ") + projectID)

			for {
				status, errText, err := engine.GetStatus(projectID)
				if err != nil {
					return err
				}
				switch status {
				case orchestrator.StatusReady:
					fmt.Println(okStyle.Render("ready"))
					if exportDir != "" {
						project, err := engine.Registry().Get(projectID)
						if err != nil {
							return err
						}
						if err := project.VFS().ExportToDisk(exportDir); err != nil {
							return err
						}
						fmt.Println("exported to", exportDir)
					}
					return nil
				case orchestrator.StatusFailed:
					fmt.Println(errStyle.Render("failed: " + errText))
					return fmt.Errorf("generation failed")
				default:
					fmt.Println(dimStyle.Render(string(status) + "..."))
					time.Sleep(2 * time.Second)
				}
			}
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&imagePath, "image", "", "reference image file")
	cmd.Flags().StringVar(&exportDir, "export", "", "export generated files to a directory")
	return cmd
}

func newEditCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "edit <project-id> <instruction>",
		Short: "Apply a natural-language edit to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer engine.Close()

			req := orchestrator.EditRequest{
				ProjectID:   args[0],
				Instruction: strings.Join(args[1:], " "),
			}
			if imagePath != "" {
				data, mime, err := loadImage(imagePath)
				if err != nil {
					return err
				}
				req.Image = data
				req.ImageMIME = mime
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			changed, err := engine.Edit(ctx, req)
			if err != nil {
				return err
			}
			for path := range changed {
				fmt.Println(okStyle.Render("changed ") + path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "reference image file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's working tree status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer engine.Close()

			project, err := engine.Registry().Get(args[0])
			if err != nil {
				return err
			}
			st := project.VFS().GetStatus()

			t := table.New(os.Stdout)
			t.SetHeaders("Field", "Value")
			t.AddRow("branch", st.Branch)
			t.AddRow("commit", st.CurrentCommit)
			t.AddRow("files", fmt.Sprintf("%d", st.TotalFiles))
			t.AddRow("added", strings.Join(st.Added, ", "))
			t.AddRow("modified", strings.Join(st.Modified, ", "))
			t.AddRow("deleted", strings.Join(st.Deleted, ", "))
			t.Render()
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <project-id>",
		Short: "Show a project's commit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer engine.Close()

			project, err := engine.Registry().Get(args[0])
			if err != nil {
				return err
			}

			t := table.New(os.Stdout)
			t.SetHeaders("Commit", "Message", "Files", "When")
			for _, c := range project.VFS().GetHistory() {
				t.AddRow(c.ID, c.Message, fmt.Sprintf("%d", c.FileCount),
					c.Timestamp.Format(time.RFC3339))
			}
			t.Render()
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Manage live container previews",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <project-id>",
			Short: "Build and start a preview",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := bootstrap()
				if err != nil {
					return err
				}
				defer engine.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				info, err := engine.CreatePreview(ctx, args[0], nil)
				if err != nil {
					return err
				}
				fmt.Println(okStyle.Render("preview ") + info.PreviewID + " " + info.URL)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status <project-id>",
			Short: "Show preview status",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := bootstrap()
				if err != nil {
					return err
				}
				defer engine.Close()

				info, ok := engine.PreviewStatus(args[0])
				if !ok {
					fmt.Println(dimStyle.Render("no preview"))
					return nil
				}
				fmt.Printf("%s %s (%s) %s\n", info.PreviewID, info.Status, info.Type, info.URL)
				if info.Error != "" {
					fmt.Println(errStyle.Render(info.Error))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "logs <project-id>",
			Short: "Show recent preview logs",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := bootstrap()
				if err != nil {
					return err
				}
				defer engine.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				lines, err := engine.PreviewLogs(ctx, args[0], 50)
				if err != nil {
					return err
				}
				for _, line := range lines {
					fmt.Println(line)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "sync <project-id> <dir>",
			Short: "Export the project to a directory and mirror edits back as commits",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := bootstrap()
				if err != nil {
					return err
				}
				defer engine.Close()

				stop, err := engine.SyncWorkdir(args[0], args[1])
				if err != nil {
					return err
				}
				defer stop()

				fmt.Println(okStyle.Render("syncing ") + args[1] + dimStyle.Render(" (ctrl-c to stop)"))
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				<-sig
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop <project-id>",
			Short: "Stop a preview",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := bootstrap()
				if err != nil {
					return err
				}
				defer engine.Close()

				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				return engine.StopPreview(ctx, args[0])
			},
		},
	)
	return cmd
}

// loadImage accepts either a file path or a base64 data URL, matching what
// collaborator layers pass across the API boundary.
func loadImage(pathOrData string) ([]byte, string, error) {
	if strings.HasPrefix(pathOrData, "data:") {
		comma := strings.Index(pathOrData, ",")
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		mime := "image/png"
		if meta := pathOrData[5:comma]; meta != "" {
			mime = strings.TrimSuffix(strings.Split(meta, ";")[0], ",")
		}
		data, err := base64.StdEncoding.DecodeString(pathOrData[comma+1:])
		if err != nil {
			return nil, "", fmt.Errorf("decode image data: %w", err)
		}
		return data, mime, nil
	}

	data, err := os.ReadFile(pathOrData)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return data, mimeFor(pathOrData), nil
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
