package inventory

import (
	"github.com/bytedance/sonic"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// Extraction rules used by the tracing decorators. All rules tolerate
// malformed or partially populated input by omitting attributes.

// MessageHostAttrs extracts host attributes from a raw MQ message body.
func MessageHostAttrs() tracing.ExtractionRule {
	return tracing.Rule("message_host_attrs", func(input any) ([]tracing.Field, bool) {
		body, ok := input.([]byte)
		if !ok {
			return nil, false
		}
		var msg HostMessage
		if err := sonic.Unmarshal(body, &msg); err != nil || msg.Data == nil {
			return nil, false
		}
		return hostFields(msg.Data), true
	})
}

// MessageIdentityAttrs extracts identity attributes from a raw MQ message body.
func MessageIdentityAttrs() tracing.ExtractionRule {
	return tracing.Rule("message_identity_attrs", func(input any) ([]tracing.Field, bool) {
		body, ok := input.([]byte)
		if !ok {
			return nil, false
		}
		var msg HostMessage
		if err := sonic.Unmarshal(body, &msg); err != nil || msg.Identity == nil {
			return nil, false
		}
		var fields []tracing.Field
		if msg.Identity.Type != "" {
			fields = append(fields, tracing.String(tracing.AttrIdentityType, msg.Identity.Type))
		}
		if msg.Identity.AuthType != "" {
			fields = append(fields, tracing.String(tracing.AttrIdentityAuthType, msg.Identity.AuthType))
		}
		return fields, len(fields) > 0
	})
}

// HostAttrs extracts host attributes from a *Host operation input.
func HostAttrs() tracing.ExtractionRule {
	return tracing.Rule("host_attrs", func(input any) ([]tracing.Field, bool) {
		host, ok := input.(*Host)
		if !ok || host == nil {
			return nil, false
		}
		return hostFields(host), true
	})
}

// UpsertResultAttr derives operation.result from an UpsertResult.
func UpsertResultAttr() tracing.ResultRule {
	return func(result any) ([]tracing.Field, bool) {
		res, ok := result.(UpsertResult)
		if !ok {
			return nil, false
		}
		return []tracing.Field{
			tracing.String(tracing.AttrOperationResult, res.Result()),
			tracing.String(tracing.AttrHostID, res.HostID),
		}, true
	}
}

func hostFields(host *Host) []tracing.Field {
	var fields []tracing.Field
	if host.ID != "" {
		fields = append(fields, tracing.String(tracing.AttrHostID, host.ID))
	}
	if host.OrgID != "" {
		fields = append(fields, tracing.String(tracing.AttrHostOrgID, host.OrgID))
	}
	if host.Account != "" {
		fields = append(fields, tracing.String(tracing.AttrHostAccount, host.Account))
	}
	if host.DisplayName != "" {
		fields = append(fields, tracing.String(tracing.AttrHostDisplayName, host.DisplayName))
	}
	if host.Reporter != "" {
		fields = append(fields, tracing.String(tracing.AttrHostReporter, host.Reporter))
	}
	if facts := host.CanonicalFactsString(); facts != "" {
		fields = append(fields, tracing.String(tracing.AttrHostCanonicalFacts, facts))
	}
	return fields
}
