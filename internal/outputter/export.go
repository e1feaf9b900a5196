package outputter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"rdscope/internal/domain"
)

// csvRow is the flattened one-resource-per-line CSV export shape
type csvRow struct {
	ResourceType string `csv:"resource_type"`
	ResourceID   string `csv:"resource_id"`
	Name         string `csv:"name"`
	Owner        string `csv:"owner"`
	Origin       string `csv:"origin"`
	Created      string `csv:"created"`
	Details      string `csv:"details"`
}

// ExportCSV writes the graph as a flat CSV file
func ExportCSV(graph *domain.ResourceGraph, path string) error {
	rows := flattenGraph(graph)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write CSV to %s: %w", path, err)
	}
	return nil
}

// ExportJSON writes the complete graph, including the completeness flag and
// unavailable list, as indented JSON
func ExportJSON(graph *domain.ResourceGraph, path string) error {
	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write JSON to %s: %w", path, err)
	}
	return nil
}

func flattenGraph(graph *domain.ResourceGraph) []csvRow {
	rows := make([]csvRow, 0, graph.Total)

	primaryType := "DB Instance"
	if graph.Primary.Kind == domain.ResourceKindCluster {
		primaryType = "DB Cluster"
	}
	rows = append(rows, csvRow{
		ResourceType: primaryType,
		ResourceID:   graph.Primary.Identifier,
		Name:         graph.Primary.Identifier,
		Created:      formatCreated(graph.Primary.CreatedAt),
		Details:      fmt.Sprintf("%s %s, %s", graph.Primary.Engine, graph.Primary.EngineVersion, graph.Primary.Status),
	})

	for _, secondary := range graph.Secondaries {
		rows = append(rows, csvRow{
			ResourceType: categoryLabel(secondary.Category),
			ResourceID:   secondary.Identifier,
			Name:         secondary.Name,
			Origin:       string(secondary.Origin),
			Details:      secondaryDetails(secondary),
		})
	}
	for _, artifact := range graph.Backups {
		rows = append(rows, csvRow{
			ResourceType: backupLabel(artifact.Kind),
			ResourceID:   artifact.Identifier,
			Owner:        artifact.OriginIdentifier,
			Created:      formatCreated(artifact.CreatedAt),
			Details:      backupDetails(artifact),
		})
	}
	for _, member := range graph.Members {
		rows = append(rows, csvRow{
			ResourceType: "DB Cluster Member",
			ResourceID:   member.Identifier,
			Owner:        member.ClusterIdentifier,
			Details:      memberDetails(member),
		})
	}

	return rows
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
