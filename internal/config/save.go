// Package config provides configuration types, defaults, and persistence for relais.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SaveDispatch updates the dispatch section in the config file.
// This preserves comments and formatting in other sections by using
// yaml.Node, and writes atomically so the config watcher never observes a
// half-written file.
func SaveDispatch(configPath string, d DispatchConfig) error {
	if err := ValidateDispatch(d); err != nil {
		return err
	}

	// Read existing file content
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	dispatchNode := buildDispatchNode(d)

	// Update or create the dispatch section
	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "dispatch"},
						dispatchNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind == yaml.MappingNode {
			// Find and replace dispatch key, or append it
			found := false
			for i := 0; i < len(root.Content)-1; i += 2 {
				if root.Content[i].Value == "dispatch" {
					root.Content[i+1] = dispatchNode
					found = true
					break
				}
			}
			if !found {
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: "dispatch"},
					dispatchNode,
				)
			}
		}
	}

	// Marshal back to YAML
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// buildDispatchNode creates a yaml.Node representing the dispatch mapping.
func buildDispatchNode(d DispatchConfig) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: make([]*yaml.Node, 0, 18),
	}

	appendScalar := func(key, value string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}

	appendScalar("sla", formatDuration(d.SLA))

	marksNode := &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
	}
	for _, mark := range d.WarningMarks {
		marksNode.Content = append(marksNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.Itoa(mark)})
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "warning_marks"},
		marksNode,
	)

	appendScalar("presence_ttl", formatDuration(d.PresenceTTL))
	appendScalar("assign_tick", formatDuration(d.AssignTick))
	appendScalar("deadline_tick", formatDuration(d.DeadlineTick))
	appendScalar("max_retries", strconv.Itoa(d.MaxRetries))
	appendScalar("warnings_before_violation", strconv.Itoa(d.WarningsBeforeViolation))
	appendScalar("violations_before_suspension", strconv.Itoa(d.ViolationsBeforeSuspension))
	appendScalar("score_threshold", strconv.FormatFloat(d.ScoreThreshold, 'f', -1, 64))

	return node
}

// formatDuration renders whole-minute and whole-second durations without the
// trailing zero units Go's String() produces ("20m0s" becomes "20m").
func formatDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	}
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return d.String()
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".relais.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
