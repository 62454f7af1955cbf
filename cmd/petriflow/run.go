package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/project-flogo/core/data/coerce"
	"github.com/spf13/cobra"

	"github.com/project-flogo/petriflow"
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/instance"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support/event"
)

var (
	runData     string
	runOutput   string
	runMaxTurns int
	runVerbose  bool
)

// runCmd plays a net: work items are started and completed as soon as they
// are offered
var runCmd = &cobra.Command{
	Use:   "run <net.json> [sub-net.json...]",
	Short: "Run a case of a net, completing every work item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCase(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runData, "data", "d", "", "case data as a JSON object")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output of every completed work item as a JSON object")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 1000, "maximum number of work items to complete")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print every event")
}

// RunResult is the report printed by the run command
type RunResult struct {
	CaseID  string                 `json:"caseId"`
	Status  string                 `json:"status"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Fired   []string               `json:"fired"`
	Items   int                    `json:"workItems"`
	Marking map[string][]string    `json:"marking,omitempty"`
}

func runCase(out io.Writer, paths []string) error {

	data, err := coerce.ToObject(runData)
	if err != nil {
		return fmt.Errorf("invalid --data: %w", err)
	}
	output, err := coerce.ToObject(runOutput)
	if err != nil {
		return fmt.Errorf("invalid --output: %w", err)
	}

	settings, err := petriflow.SettingsFromEnv()
	if err != nil {
		return err
	}
	engine := petriflow.New(petriflow.WithSettings(settings))

	var specID string
	for i, path := range paths {
		rep, err := readDefinitionRep(path)
		if err != nil {
			return err
		}
		def, err := engine.LoadSpecification(rep)
		if err != nil {
			return err
		}
		if i == 0 {
			specID = def.ID()
		}
	}

	result := &RunResult{}
	enc := json.NewEncoder(out)
	engine.AddListener(func(evt interface{}) {
		if fr, ok := evt.(*event.FireResult); ok {
			result.Fired = append(result.Fired, fr.CaseID+"/"+fr.TaskID)
		}
		if runVerbose {
			_ = enc.Encode(map[string]interface{}{"type": event.EventType(evt), "event": evt})
		}
	})

	c, err := engine.LaunchCase(specID, data)
	if err != nil {
		return err
	}

	for turn := 0; turn < runMaxTurns && !c.Status().IsFinal(); turn++ {
		wi := nextItem(engine)
		if wi == nil {
			break
		}
		if wi.Status() == model.WorkItemStatusEnabled {
			if wi, err = engine.StartWorkItem(wi.ID()); err != nil {
				return err
			}
		}
		if wi.Status() == model.WorkItemStatusExecuting && !isSubnetItem(engine, wi) {
			if _, err = engine.CompleteWorkItem(wi.ID(), output); err != nil {
				return err
			}
		}
		result.Items++
	}

	result.CaseID = c.ID()
	result.Status = c.Status().String()
	result.Data = c.Data()
	result.Marking = c.MarkingSnapshot()

	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// nextItem returns the first active work item of any case that the run can
// progress, items executed by a sub-net wait for their case
func nextItem(engine *petriflow.Engine) *instance.WorkItem {
	for _, c := range engine.Cases() {
		if c.Status() != model.CaseStatusRunning {
			continue
		}
		for _, wi := range c.WorkItems() {
			switch wi.Status() {
			case model.WorkItemStatusEnabled:
				return wi
			case model.WorkItemStatusExecuting:
				if !isSubnetItem(engine, wi) {
					return wi
				}
			}
		}
	}
	return nil
}

func isSubnetItem(engine *petriflow.Engine, wi *instance.WorkItem) bool {
	c, err := engine.Case(wi.CaseID())
	if err != nil {
		return false
	}
	decomp := c.Definition().GetTask(wi.TaskID()).Decomposition()
	return decomp != nil && decomp.Type == definition.DecompositionNet
}
