// Code generated by ent, DO NOT EDIT.

package ent

import (
	"time"

	"github.com/dataagent-io/dataagent/ent/mcpserver"
	"github.com/dataagent-io/dataagent/ent/message"
	"github.com/dataagent-io/dataagent/ent/schema"
	"github.com/dataagent-io/dataagent/ent/session"
	"github.com/dataagent-io/dataagent/ent/user"
)

// The init function reads all schema descriptors with runtime code
// (default values, validators, hooks and policies) and stitches it
// to their package variables.
func init() {
	mcpserverFields := schema.MCPServer{}.Fields()
	_ = mcpserverFields
	// mcpserverDescEnabled is the schema descriptor for enabled field.
	mcpserverDescEnabled := mcpserverFields[4].Descriptor()
	// mcpserver.DefaultEnabled holds the default value on creation for the enabled field.
	mcpserver.DefaultEnabled = mcpserverDescEnabled.Default.(bool)
	// mcpserverDescCreatedAt is the schema descriptor for created_at field.
	mcpserverDescCreatedAt := mcpserverFields[5].Descriptor()
	// mcpserver.DefaultCreatedAt holds the default value on creation for the created_at field.
	mcpserver.DefaultCreatedAt = mcpserverDescCreatedAt.Default.(func() time.Time)
	// mcpserverDescUpdatedAt is the schema descriptor for updated_at field.
	mcpserverDescUpdatedAt := mcpserverFields[6].Descriptor()
	// mcpserver.DefaultUpdatedAt holds the default value on creation for the updated_at field.
	mcpserver.DefaultUpdatedAt = mcpserverDescUpdatedAt.Default.(func() time.Time)
	// mcpserver.UpdateDefaultUpdatedAt holds the default value on update for the updated_at field.
	mcpserver.UpdateDefaultUpdatedAt = mcpserverDescUpdatedAt.UpdateDefault.(func() time.Time)
	messageFields := schema.Message{}.Fields()
	_ = messageFields
	// messageDescCreatedAt is the schema descriptor for created_at field.
	messageDescCreatedAt := messageFields[7].Descriptor()
	// message.DefaultCreatedAt holds the default value on creation for the created_at field.
	message.DefaultCreatedAt = messageDescCreatedAt.Default.(func() time.Time)
	sessionFields := schema.Session{}.Fields()
	_ = sessionFields
	// sessionDescCreatedAt is the schema descriptor for created_at field.
	sessionDescCreatedAt := sessionFields[6].Descriptor()
	// session.DefaultCreatedAt holds the default value on creation for the created_at field.
	session.DefaultCreatedAt = sessionDescCreatedAt.Default.(func() time.Time)
	// sessionDescLastActiveAt is the schema descriptor for last_active_at field.
	sessionDescLastActiveAt := sessionFields[7].Descriptor()
	// session.DefaultLastActiveAt holds the default value on creation for the last_active_at field.
	session.DefaultLastActiveAt = sessionDescLastActiveAt.Default.(func() time.Time)
	userFields := schema.User{}.Fields()
	_ = userFields
	// userDescCreatedAt is the schema descriptor for created_at field.
	userDescCreatedAt := userFields[3].Descriptor()
	// user.DefaultCreatedAt holds the default value on creation for the created_at field.
	user.DefaultCreatedAt = userDescCreatedAt.Default.(func() time.Time)
}
