package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fmconsole/internal/backend"
	"fmconsole/internal/model"
	"fmconsole/internal/schema"
	"fmconsole/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect upstream records",
	}
	cmd.AddCommand(inspectTaskCmd())
	return cmd
}

type taskInspection struct {
	ID       string                    `json:"id"`
	Name     string                    `json:"name"`
	Location string                    `json:"location"`
	Status   string                    `json:"status"`
	Workflow model.WorkflowSize        `json:"workflow"`
	Shape    schema.Shape              `json:"shape"`
	Matched  schema.Shape              `json:"matched"`
	Empty    bool                      `json:"empty"`
	Grouped  bool                      `json:"grouped"`
	Sections []model.Section           `json:"sections,omitempty"`
	Items    []model.ChecklistQuestion `json:"questions"`
}

func inspectTaskCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "task <id>",
		Short: "Fetch a task and print its derived checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			deriver, err := schema.NewDeriver(schema.NewCompilerWithCache(16))
			if err != nil {
				return err
			}
			out, err := inspectTask(cmd.Context(), newUpstream(cfg, zap.NewNop()), deriver, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out)
			}
			renderTask(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func inspectTask(ctx context.Context, client *backend.Client, deriver *schema.Deriver, id string) (taskInspection, error) {
	rec, err := client.FetchTask(ctx, id)
	if err != nil {
		return taskInspection{}, err
	}
	checklist := deriver.Derive(ctx, rec)
	steps, _ := rec["steps"].(float64)
	return taskInspection{
		ID:       id,
		Name:     service.TaskName(rec),
		Location: service.TaskLocation(rec),
		Status:   service.TaskStatus(rec),
		Workflow: model.WorkflowSizeFromSteps(int(steps)),
		Shape:    checklist.Shape,
		Matched:  deriver.Sniff(ctx, rec),
		Empty:    checklist.Empty(),
		Grouped:  checklist.Grouped(),
		Sections: checklist.Sections,
		Items:    checklist.Questions,
	}, nil
}

func renderTask(t taskInspection) {
	fmt.Printf("%s  %s\n", t.ID, t.Name)
	fmt.Printf("location: %s  status: %s  workflow: %s  shape: %s\n", t.Location, t.Status, t.Workflow, t.Shape)
	if t.Matched != t.Shape {
		fmt.Printf("record matches the %s shape but its checklist could not be read\n", t.Matched)
	}

	if t.Empty {
		fmt.Println("no checklist available")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	if t.Grouped {
		tw.AppendHeader(table.Row{"Section", "#", "Question", "Kind", "Required", "Options"})
		n := 0
		for _, s := range t.Sections {
			label := s.GroupName
			if s.SubGroupName != "" {
				label += " / " + s.SubGroupName
			}
			for _, q := range s.Questions {
				n++
				tw.AppendRow(table.Row{label, n, q.Prompt, q.Kind, required(q), strings.Join(q.Options, ", ")})
			}
			tw.AppendSeparator()
		}
	} else {
		tw.AppendHeader(table.Row{"#", "Question", "Kind", "Required", "Options"})
		for i, q := range t.Items {
			tw.AppendRow(table.Row{i + 1, q.Prompt, q.Kind, required(q), strings.Join(q.Options, ", ")})
		}
	}
	tw.Render()
}

func required(q model.ChecklistQuestion) string {
	if q.Required {
		return "yes"
	}
	return ""
}
