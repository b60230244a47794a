package engine

import "context"

// Two parallel recipient resolvers exist because notifications need a user
// id while emails need an address.

type recipientConfig struct {
	RecipientType  string `mapstructure:"recipient_type"`
	RecipientID    string `mapstructure:"recipient_id"`
	RecipientEmail string `mapstructure:"recipient_email"`
	EntityID       string `mapstructure:"entity_id"`
	EntityType     string `mapstructure:"entity_type"`
}

// resolveRecipientUserID resolves a notification target to a user id:
// trigger_user (default), entity_owner (owner column of the subject
// entity, falling back to the triggering user), or specific_id.
func (e *Engine) resolveRecipientUserID(ctx context.Context, req *StepRequest, cfg recipientConfig) string {
	switch cfg.RecipientType {
	case "specific_id":
		if cfg.RecipientID != "" {
			return cfg.RecipientID
		}
	case "entity_owner":
		table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
		if id != "" {
			record, err := e.store.GetEntity(ctx, req.TenantID(), table, id)
			if err == nil {
				if owner, ok := record[ownerColumn(table)].(string); ok && owner != "" {
					return owner
				}
			}
		}
	}
	return req.UserID()
}

// resolveRecipientEmail resolves an email address and display name:
// specific (literal or templated address from config), entity_owner
// (clients carry email/name directly; other entities resolve through the
// owner column to that user's profile), then a fallback chain: the
// triggering user's profile email, an attendee_email in context (public
// registration triggers with no authenticated actor), then any of
// client_email/lead_email/entity_email in context. An empty email is a
// fatal precondition for send_email, enforced by the caller.
func (e *Engine) resolveRecipientEmail(ctx context.Context, req *StepRequest, cfg recipientConfig) (string, string) {
	switch cfg.RecipientType {
	case "specific":
		if cfg.RecipientEmail != "" {
			return cfg.RecipientEmail, ""
		}
	case "entity_owner":
		if email, name := e.ownerEmail(ctx, req, cfg); email != "" {
			return email, name
		}
	}

	if profile, err := e.store.GetUserProfile(ctx, req.TenantID(), req.UserID()); err == nil && profile.Email != "" {
		return profile.Email, profile.FullName
	}
	if email := req.Ctx.String("attendee_email"); email != "" {
		return email, req.Ctx.String("attendee_name")
	}
	for _, key := range []string{"client_email", "lead_email", "entity_email"} {
		if email := req.Ctx.String(key); email != "" {
			return email, ""
		}
	}
	return "", ""
}

func (e *Engine) ownerEmail(ctx context.Context, req *StepRequest, cfg recipientConfig) (string, string) {
	table, id := resolveTarget(cfg.EntityID, cfg.EntityType, req.Ctx)
	if id == "" {
		return "", ""
	}
	record, err := e.store.GetEntity(ctx, req.TenantID(), table, id)
	if err != nil {
		return "", ""
	}

	// Clients carry their address directly on the record.
	if table == "clients" {
		email, _ := record["email"].(string)
		name, _ := record["name"].(string)
		return email, name
	}

	owner, _ := record[ownerColumn(table)].(string)
	if owner == "" {
		return "", ""
	}
	profile, err := e.store.GetUserProfile(ctx, req.TenantID(), owner)
	if err != nil {
		return "", ""
	}
	return profile.Email, profile.FullName
}
