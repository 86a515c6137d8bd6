// Code generated by ent, DO NOT EDIT.

package migrate

import (
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// SMcpServerColumns holds the columns for the "s_mcp_server" table.
	SMcpServerColumns = []*schema.Column{
		{Name: "mcp_server_id", Type: field.TypeString, Unique: true},
		{Name: "server_name", Type: field.TypeString},
		{Name: "config", Type: field.TypeJSON},
		{Name: "enabled", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeString},
	}
	// SMcpServerTable holds the schema information for the "s_mcp_server" table.
	SMcpServerTable = &schema.Table{
		Name:       "s_mcp_server",
		Columns:    SMcpServerColumns,
		PrimaryKey: []*schema.Column{SMcpServerColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "s_mcp_server_s_user_mcp_servers",
				Columns:    []*schema.Column{SMcpServerColumns[6]},
				RefColumns: []*schema.Column{SUserColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "mcpserver_user_id_server_name",
				Unique:  true,
				Columns: []*schema.Column{SMcpServerColumns[6], SMcpServerColumns[1]},
			},
		},
	}
	// SMessageRelColumns holds the columns for the "s_message_rel" table.
	SMessageRelColumns = []*schema.Column{
		{Name: "message_id", Type: field.TypeString, Unique: true},
		{Name: "sequence_number", Type: field.TypeInt},
		{Name: "role", Type: field.TypeEnum, Enums: []string{"system", "user", "assistant", "tool"}},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "tool_calls", Type: field.TypeJSON, Nullable: true},
		{Name: "tool_call_id", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
	}
	// SMessageRelTable holds the schema information for the "s_message_rel" table.
	SMessageRelTable = &schema.Table{
		Name:       "s_message_rel",
		Columns:    SMessageRelColumns,
		PrimaryKey: []*schema.Column{SMessageRelColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "s_message_rel_s_session_messages",
				Columns:    []*schema.Column{SMessageRelColumns[7]},
				RefColumns: []*schema.Column{SSessionColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_session_id_sequence_number",
				Unique:  true,
				Columns: []*schema.Column{SMessageRelColumns[7], SMessageRelColumns[1]},
			},
		},
	}
	// SSessionColumns holds the columns for the "s_session" table.
	SSessionColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString, Unique: true},
		{Name: "agent_id", Type: field.TypeString},
		{Name: "title", Type: field.TypeString, Nullable: true},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"active", "ended", "expired"}, Default: "active"},
		{Name: "session_metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "last_active_at", Type: field.TypeTime},
		{Name: "deleted_at", Type: field.TypeTime, Nullable: true},
		{Name: "user_id", Type: field.TypeString},
	}
	// SSessionTable holds the schema information for the "s_session" table.
	SSessionTable = &schema.Table{
		Name:       "s_session",
		Columns:    SSessionColumns,
		PrimaryKey: []*schema.Column{SSessionColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "s_session_s_user_sessions",
				Columns:    []*schema.Column{SSessionColumns[8]},
				RefColumns: []*schema.Column{SUserColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "session_user_id",
				Unique:  false,
				Columns: []*schema.Column{SSessionColumns[8]},
			},
			{
				Name:    "session_status_last_active_at",
				Unique:  false,
				Columns: []*schema.Column{SSessionColumns[3], SSessionColumns[6]},
			},
			{
				Name:    "session_deleted_at",
				Unique:  false,
				Columns: []*schema.Column{SSessionColumns[7]},
			},
		},
	}
	// SUserColumns holds the columns for the "s_user" table.
	SUserColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString, Unique: true},
		{Name: "display_name", Type: field.TypeString, Nullable: true},
		{Name: "role", Type: field.TypeEnum, Enums: []string{"user", "admin"}, Default: "user"},
		{Name: "created_at", Type: field.TypeTime},
	}
	// SUserTable holds the schema information for the "s_user" table.
	SUserTable = &schema.Table{
		Name:       "s_user",
		Columns:    SUserColumns,
		PrimaryKey: []*schema.Column{SUserColumns[0]},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		SMcpServerTable,
		SMessageRelTable,
		SSessionTable,
		SUserTable,
	}
)

func init() {
	SMcpServerTable.ForeignKeys[0].RefTable = SUserTable
	SMcpServerTable.Annotation = &entsql.Annotation{
		Table: "s_mcp_server",
	}
	SMessageRelTable.ForeignKeys[0].RefTable = SSessionTable
	SMessageRelTable.Annotation = &entsql.Annotation{
		Table: "s_message_rel",
	}
	SSessionTable.ForeignKeys[0].RefTable = SUserTable
	SSessionTable.Annotation = &entsql.Annotation{
		Table: "s_session",
	}
	SUserTable.Annotation = &entsql.Annotation{
		Table: "s_user",
	}
}
