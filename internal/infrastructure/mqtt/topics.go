package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is blank.
const DefaultTopicPrefix = "factorydata"

// Topics builds the service's MQTT topics under a common prefix:
//
//	<prefix>/system/status     retained online/offline status
//	<prefix>/events/<action>   lifecycle events, one per committed change
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder. Surrounding slashes are trimmed from
// prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// SystemStatus returns the retained service status topic.
//
// Example: factorydata/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// Event returns the topic for a lifecycle action, lower-cased.
//
// Example: factorydata/events/provisioned
func (t Topics) Event(action string) string {
	return t.prefix + "/events/" + strings.ToLower(action)
}

// AllEvents returns a wildcard subscription for every lifecycle event.
func (t Topics) AllEvents() string {
	return t.prefix + "/events/+"
}
