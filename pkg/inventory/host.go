package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// Host is the inventory record carried by MQ messages and persisted rows.
type Host struct {
	ID             string            `json:"id"`
	OrgID          string            `json:"org_id"`
	Account        string            `json:"account,omitempty"`
	DisplayName    string            `json:"display_name,omitempty"`
	Reporter       string            `json:"reporter"`
	CanonicalFacts map[string]string `json:"canonical_facts,omitempty"`
	SystemProfile  map[string]any    `json:"system_profile,omitempty"`
}

// Validate checks the fields every inbound host must carry. A missing id is
// minted so replays of partially formed payloads still stage deterministic
// rows downstream.
func (h *Host) Validate() error {
	if h == nil {
		return fmt.Errorf("host payload is empty")
	}
	if h.OrgID == "" {
		return fmt.Errorf("host org_id is required")
	}
	if h.Reporter == "" {
		return fmt.Errorf("host reporter is required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// CanonicalFactsString renders canonical facts as a stable "k=v,k=v" string
// for span attributes.
func (h *Host) CanonicalFactsString() string {
	if len(h.CanonicalFacts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h.CanonicalFacts))
	for k := range h.CanonicalFacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+h.CanonicalFacts[k])
	}
	return strings.Join(parts, ",")
}

// Identity describes the caller on whose behalf a host message was produced.
type Identity struct {
	Type     string `json:"type"`
	AuthType string `json:"auth_type"`
	OrgID    string `json:"org_id"`
}

// PlatformMetadata carries request linkage data attached by the ingress gate.
type PlatformMetadata struct {
	RequestID string `json:"request_id,omitempty"`
	B64Identity string `json:"b64_identity,omitempty"`
}

// HostMessage is the MQ envelope for host add/update operations.
type HostMessage struct {
	Operation        string            `json:"operation"`
	Data             *Host             `json:"data"`
	Identity         *Identity         `json:"identity,omitempty"`
	PlatformMetadata *PlatformMetadata `json:"platform_metadata,omitempty"`
}

// Operations accepted on the host ingress topic.
const (
	OperationAddHost = "add_host"
)

// UpsertResult reports the outcome of staging one host row.
type UpsertResult struct {
	HostID  string
	Created bool
}

// Result returns the operation.result value for the outcome.
func (r UpsertResult) Result() string {
	if r.Created {
		return tracing.ResultCreated
	}
	return tracing.ResultUpdated
}

// Event is the outbound notification produced after a successful commit.
type Event struct {
	Type string `json:"type"`
	Host *Host  `json:"host"`
}
