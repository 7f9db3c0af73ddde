// internal/ledger/indexer.go
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"microloan-workers/internal/common/database"
	"microloan-workers/internal/common/logger"
	"microloan-workers/internal/models"
)

const indexTimeout = 5 * time.Second

// AuditIndexer mirrors accepted status transitions into Elasticsearch so
// ops can query the audit trail without touching the ledger database. The
// ledger transaction has already committed by the time a document reaches
// the indexer, so failures here are logged and dropped, never surfaced.
type AuditIndexer struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewAuditIndexer(es *database.ElasticsearchClient, index string, log logger.Logger) *AuditIndexer {
	return &AuditIndexer{
		es:     es,
		index:  index,
		logger: log,
	}
}

// IndexStatusChange indexes one audit entry keyed by its audit id, so a
// retried delivery overwrites rather than duplicates.
func (i *AuditIndexer) IndexStatusChange(ctx context.Context, audit *models.StatusChangeAudit) {
	body, err := json.Marshal(audit)
	if err != nil {
		i.logger.Error("audit entry marshal failed", map[string]interface{}{
			"auditId": audit.ID,
			"error":   err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	if err := i.es.IndexDocument(ctx, i.index, audit.ID, body); err != nil {
		i.logger.Warn("audit entry indexing failed", map[string]interface{}{
			"auditId":       audit.ID,
			"applicationId": audit.ApplicationID,
			"error":         err.Error(),
		})
	}
}
