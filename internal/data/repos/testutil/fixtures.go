package testutil

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
)

// Fixture builders produce fully populated aggregates so both backends get
// exercised against the same shapes.

func NewCase(n int) *cases.Case {
	c := cases.NewCase(
		fmt.Sprintf("user_%d", n),
		fmt.Sprintf("org_%d", n),
		fmt.Sprintf("database connection pool exhausted %d", n),
		fmt.Sprintf("api latency spiked after deploy %d", n),
	)
	return c
}

func AddEvidence(c *cases.Case, n int) cases.Evidence {
	e := cases.Evidence{
		EvidenceID:          cases.NewEvidenceID(),
		Category:            "logs",
		Summary:             fmt.Sprintf("pool exhaustion in service logs %d", n),
		PreprocessedContent: fmt.Sprintf("connection refused after 200 concurrent requests %d", n),
		ContentRef:          fmt.Sprintf("blob://evidence/%d", n),
		FileSize:            2048,
		Filename:            fmt.Sprintf("app-%d.log", n),
		UploadTimestamp:     time.Now().UTC().Add(time.Duration(n) * time.Second).Truncate(time.Microsecond),
		Metadata:            datatypes.JSON([]byte(`{"source":"agent"}`)),
	}
	c.Evidence = append(c.Evidence, e)
	return e
}

func AddHypothesis(c *cases.Case, n int, status cases.HypothesisStatus) cases.Hypothesis {
	now := time.Now().UTC().Truncate(time.Microsecond)
	h := cases.Hypothesis{
		HypothesisID:          cases.NewHypothesisID(),
		Description:           fmt.Sprintf("pool size too small for peak load %d", n),
		Status:                status,
		ConfidenceScore:       0.6,
		SupportingEvidenceIDs: []string{},
		ProposedAt:            now,
		UpdatedAt:             now,
	}
	c.Hypotheses[h.HypothesisID] = h
	return h
}

func AddSolution(c *cases.Case, n int, status cases.SolutionStatus) cases.Solution {
	s := cases.Solution{
		SolutionID:          cases.NewSolutionID(),
		Description:         fmt.Sprintf("raise max_connections and add pgbouncer %d", n),
		Status:              status,
		ImplementationSteps: []string{"update config", "restart pool"},
		RiskLevel:           cases.RiskMedium,
		ProposedAt:          time.Now().UTC().Add(time.Duration(n) * time.Second).Truncate(time.Microsecond),
	}
	c.Solutions = append(c.Solutions, s)
	return s
}

func AddFile(c *cases.Case, n int, sizeBytes int64) cases.UploadedFile {
	f := cases.UploadedFile{
		FileID:         cases.NewFileID(),
		Filename:       fmt.Sprintf("metrics-%d.csv", n),
		SizeBytes:      sizeBytes,
		DataType:       "text/csv",
		UploadedAtTurn: n,
		UploadedAt:     time.Now().UTC().Add(time.Duration(n) * time.Second).Truncate(time.Microsecond),
		SourceType:     "upload",
		ContentRef:     fmt.Sprintf("blob://files/%d", n),
	}
	c.UploadedFiles = append(c.UploadedFiles, f)
	return f
}

func NewMessage(n int, role cases.MessageRole) cases.Message {
	return cases.Message{
		MessageID: cases.NewMessageID(),
		Role:      role,
		Content:   fmt.Sprintf("turn %d", n),
		CreatedAt: time.Now().UTC().Add(time.Duration(n) * time.Millisecond).Truncate(time.Microsecond),
		Metadata:  datatypes.JSON([]byte(`{}`)),
	}
}
