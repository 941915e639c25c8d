package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
	"github.com/yungbote/dealgraph-backend/internal/platform/neo4jdb"
)

const projectionBatchSize = 1000

// SyncCoInvestmentGraph replaces the CO_INVESTED relationships in Neo4j with
// the given edges. Firm nodes are merged by id; relationships from earlier
// runs are removed after the new ones are written.
func SyncCoInvestmentGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, runID string, firms []*types.Firm, edges []*types.CoInvestmentEdge) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	firmNodes := firmNodeParams(firms, now)
	rels := coInvestmentRelParams(edges, runID, now)

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT firm_id_unique IF NOT EXISTS FOR (f:Firm) REQUIRE f.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	for _, batch := range chunkParams(firmNodes, projectionBatchSize) {
		if err := runWrite(ctx, session, `
UNWIND $firms AS f
MERGE (n:Firm {id: f.id})
SET n += f
`, map[string]any{"firms": batch}); err != nil {
			return err
		}
	}
	for _, batch := range chunkParams(rels, projectionBatchSize) {
		if err := runWrite(ctx, session, `
UNWIND $rels AS r
MERGE (a:Firm {id: r.firm_a_id})
MERGE (b:Firm {id: r.firm_b_id})
MERGE (a)-[e:CO_INVESTED]->(b)
SET e.deal_count = r.deal_count,
    e.total_value_usd = r.total_value_usd,
    e.first_deal_date = r.first_deal_date,
    e.last_deal_date = r.last_deal_date,
    e.top_industries_json = r.top_industries_json,
    e.run_id = r.run_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": batch}); err != nil {
			return err
		}
	}
	if err := runWrite(ctx, session, `
MATCH ()-[e:CO_INVESTED]->()
WHERE e.run_id IS NULL OR e.run_id <> $run_id
DELETE e
`, map[string]any{"run_id": runID}); err != nil {
		return err
	}

	if log != nil {
		log.Info("Co-investment graph projected to neo4j", "run_id", runID, "firms", len(firmNodes), "edges", len(rels))
	}
	return nil
}

func runWrite(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func firmNodeParams(firms []*types.Firm, syncedAt string) []map[string]any {
	out := make([]map[string]any, 0, len(firms))
	seen := map[uuid.UUID]bool{}
	for _, f := range firms {
		if f == nil || f.ID == uuid.Nil || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		node := map[string]any{
			"id":              f.ID.String(),
			"name":            f.Name,
			"name_normalized": f.NameNormalized,
			"source_id":       f.SourceID,
			"synced_at":       syncedAt,
		}
		if f.FirmType != nil {
			node["firm_type"] = *f.FirmType
		}
		if f.HeadquartersCountry != nil {
			node["country"] = *f.HeadquartersCountry
		}
		if f.AumUSD != nil {
			node["aum_usd"] = *f.AumUSD
		}
		out = append(out, node)
	}
	return out
}

// Relationships always point from the smaller firm id to the larger one,
// matching the stored edge orientation.
func coInvestmentRelParams(edges []*types.CoInvestmentEdge, runID, syncedAt string) []map[string]any {
	out := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.FirmAID == uuid.Nil || e.FirmBID == uuid.Nil {
			continue
		}
		a, b := types.OrderedPair(e.FirmAID, e.FirmBID)
		rel := map[string]any{
			"firm_a_id":           a.String(),
			"firm_b_id":           b.String(),
			"deal_count":          int64(e.DealCount),
			"total_value_usd":     nil,
			"first_deal_date":     nil,
			"last_deal_date":      nil,
			"top_industries_json": "",
			"run_id":              runID,
			"synced_at":           syncedAt,
		}
		if e.TotalValueUSD != nil {
			rel["total_value_usd"] = *e.TotalValueUSD
		}
		if e.FirstDealDate != nil {
			rel["first_deal_date"] = e.FirstDealDate.UTC().Format("2006-01-02")
		}
		if e.LastDealDate != nil {
			rel["last_deal_date"] = e.LastDealDate.UTC().Format("2006-01-02")
		}
		if len(e.TopIndustries) > 0 && json.Valid(e.TopIndustries) {
			rel["top_industries_json"] = string(e.TopIndustries)
		}
		out = append(out, rel)
	}
	return out
}

func chunkParams(rows []map[string]any, size int) [][]map[string]any {
	if len(rows) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(rows)
	}
	out := make([][]map[string]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
