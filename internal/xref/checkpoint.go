package xref

import (
	"github.com/sells-group/catalog-etl/internal/model"
)

// Pending returns the records of recs that have no entry in done, in order.
func Pending(recs []model.SourceRecord, done map[int64]model.EnrichedRecord) []model.SourceRecord {
	if len(done) == 0 {
		return recs
	}
	out := make([]model.SourceRecord, 0, len(recs))
	for _, rec := range recs {
		if _, ok := done[rec.CatalogID]; !ok {
			out = append(out, rec)
		}
	}
	return out
}

// Merge rebuilds the full output for recs from checkpointed records and the
// records resolved in this run. Order follows recs. A record present in
// neither gets empty rating fields.
func Merge(recs []model.SourceRecord, done map[int64]model.EnrichedRecord, resolved []model.EnrichedRecord) []model.EnrichedRecord {
	fresh := make(map[int64]model.EnrichedRecord, len(resolved))
	for _, r := range resolved {
		fresh[r.CatalogID] = r
	}
	out := make([]model.EnrichedRecord, len(recs))
	for i, rec := range recs {
		if r, ok := fresh[rec.CatalogID]; ok {
			out[i] = r
			continue
		}
		if d, ok := done[rec.CatalogID]; ok {
			out[i] = d
			continue
		}
		out[i] = model.EnrichedRecord{CatalogID: rec.CatalogID}
	}
	return out
}
