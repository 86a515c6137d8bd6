package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MCPServer holds the schema definition for the MCPServer entity: one
// user's persisted tool-server configuration.
type MCPServer struct {
	ent.Schema
}

// Fields of the MCPServer.
func (MCPServer) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("mcp_server_id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("server_name"),
		field.JSON("config", map[string]interface{}{}).
			Comment("Server definition: command/args/env or url/transport/headers, disabled, autoApprove"),
		field.Bool("enabled").
			Default(true),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the MCPServer.
func (MCPServer) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("owner", User.Type).
			Ref("mcp_servers").
			Field("user_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the MCPServer.
func (MCPServer) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "server_name").
			Unique(),
	}
}

// Annotations of the MCPServer.
func (MCPServer) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "s_mcp_server"},
	}
}
