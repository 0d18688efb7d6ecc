// Package dedup finds and removes near-duplicate knowledge items.
//
// Items are grouped when their normalized content is identical or when their
// embeddings lie within a cosine distance threshold of the group's canonical
// item. The canonical item is the earliest created and is always kept.
package dedup

import (
	"context"
	"fmt"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/storage"
)

// Defaults.
const (
	DefaultDistanceThreshold = 0.03
	DefaultMaxItems          = 5000
)

// Reasons a group was formed.
const (
	ReasonExact    = "exact"
	ReasonSemantic = "semantic"
)

// Group is one canonical item and the items that duplicate it.
type Group struct {
	CanonicalID  string   `json:"canonical_id"`
	DuplicateIDs []string `json:"duplicate_ids"`
	Reason       string   `json:"reason"`
}

// Report is the outcome of a scan. Its shape does not depend on DryRun;
// under DryRun, Deleted counts the rows that would be deleted.
type Report struct {
	Namespace       string  `json:"namespace"`
	DryRun          bool    `json:"dry_run"`
	Scanned         int     `json:"scanned"`
	DuplicateGroups int     `json:"duplicate_groups"`
	Deleted         int     `json:"deleted"`
	Groups          []Group `json:"groups"`
}

// Config holds Detector settings.
type Config struct {
	DistanceThreshold float64
	MaxItems          int
}

// Detector scans namespaces for duplicates.
type Detector struct {
	store   storage.DedupStore
	cfg     Config
	metrics *metrics.Manager
	logger  logger.Logger
}

// NewDetector creates a Detector. m may be nil.
func NewDetector(store storage.DedupStore, cfg Config, m *metrics.Manager, log logger.Logger) *Detector {
	if cfg.DistanceThreshold < 0 {
		cfg.DistanceThreshold = DefaultDistanceThreshold
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if log == nil {
		log = logger.Global()
	}
	return &Detector{store: store, cfg: cfg, metrics: m, logger: log.With("component", "dedup")}
}

type cluster struct {
	canonical *memory.KnowledgeItem
	group     Group
}

// FindGroups partitions items, which must be ordered oldest first, into
// duplicate groups. Only groups with at least one duplicate are returned.
func FindGroups(items []*memory.KnowledgeItem, threshold float64) []Group {
	var clusters []*cluster
	byContent := make(map[string]*cluster, len(items))

	for _, item := range items {
		key := memory.NormalizeContent(item.Content)
		if c, ok := byContent[key]; ok && key != "" {
			c.group.DuplicateIDs = append(c.group.DuplicateIDs, item.ID)
			continue
		}

		if c := nearest(clusters, item, threshold); c != nil {
			c.group.DuplicateIDs = append(c.group.DuplicateIDs, item.ID)
			if c.group.Reason == ReasonExact {
				c.group.Reason = ReasonSemantic
			}
			continue
		}

		c := &cluster{canonical: item, group: Group{CanonicalID: item.ID, Reason: ReasonExact}}
		clusters = append(clusters, c)
		byContent[key] = c
	}

	var out []Group
	for _, c := range clusters {
		if len(c.group.DuplicateIDs) > 0 {
			out = append(out, c.group)
		}
	}
	return out
}

// nearest returns the closest cluster within threshold of item, if any.
func nearest(clusters []*cluster, item *memory.KnowledgeItem, threshold float64) *cluster {
	if len(item.Embedding) == 0 {
		return nil
	}
	var (
		best     *cluster
		bestDist = threshold
	)
	for _, c := range clusters {
		ce := c.canonical.Embedding
		if len(ce) != len(item.Embedding) {
			continue
		}
		if d := memory.CosineDistance(ce, item.Embedding); d <= bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Scan groups the namespace's knowledge items and, unless dryRun, deletes
// every group's duplicates. Each group is deleted in its own transaction.
func (d *Detector) Scan(ctx context.Context, namespace string, dryRun bool) (*Report, error) {
	items, err := d.store.KnowledgeItems(ctx, namespace, d.cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("load knowledge items: %w", err)
	}

	groups := FindGroups(items, d.cfg.DistanceThreshold)
	report := &Report{
		Namespace:       namespace,
		DryRun:          dryRun,
		Scanned:         len(items),
		DuplicateGroups: len(groups),
		Groups:          groups,
	}
	if report.Groups == nil {
		report.Groups = []Group{}
	}

	for _, g := range groups {
		if dryRun {
			report.Deleted += len(g.DuplicateIDs)
			continue
		}
		n, err := d.store.DeleteKnowledgeItems(ctx, namespace, g.DuplicateIDs)
		if err != nil {
			return nil, fmt.Errorf("delete duplicates of %s: %w", g.CanonicalID, err)
		}
		report.Deleted += n
	}

	d.metrics.RecordDedup(report.DuplicateGroups, report.Deleted)
	d.logger.InfoContext(ctx, "dedup scan complete",
		"namespace", namespace,
		"dry_run", dryRun,
		"scanned", report.Scanned,
		"groups", report.DuplicateGroups,
		"deleted", report.Deleted,
	)
	return report, nil
}
