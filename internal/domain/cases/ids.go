package cases

import (
	"strings"

	"github.com/google/uuid"
)

func newID(prefix string, n int) string {
	h := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + h[:n]
}

// ID generators respect the schema length bounds: case ids fit varchar(17),
// child ids varchar(15), message ids varchar(20).

func NewCaseID() string       { return newID("case_", 12) }
func NewEvidenceID() string   { return newID("ev_", 12) }
func NewHypothesisID() string { return newID("hyp_", 11) }
func NewSolutionID() string   { return newID("sol_", 11) }
func NewFileID() string       { return newID("file_", 10) }
func NewMessageID() string    { return newID("msg_", 16) }
