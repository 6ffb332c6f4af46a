package metadata

// User is unique by (cluster, username).
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	IsSuperuser  bool   `json:"is_superuser"`
}

// Topic is unique by (cluster, topic_name). TopicID is assigned once at
// creation and never changes.
type Topic struct {
	TopicName              string `json:"topic_name"`
	TopicID                string `json:"topic_id"`
	RetainMessage          []byte `json:"retain_message,omitempty"`
	RetainMessageExpiredAt *int64 `json:"retain_message_expired_at,omitempty"`
}

// ClearRetainMessage enforces invariant 2: retain_message is non-empty iff
// retain_message_expired_at is set, and clearing one clears both.
func (t *Topic) ClearRetainMessage() {
	t.RetainMessage = nil
	t.RetainMessageExpiredAt = nil
}

// HasRetainMessage reports whether a retained message is currently set.
func (t *Topic) HasRetainMessage() bool {
	return len(t.RetainMessage) > 0 && t.RetainMessageExpiredAt != nil
}

// Session is unique by (cluster, client_id).
type Session struct {
	ClientID              string `json:"client_id"`
	BrokerID              uint64 `json:"broker_id"`
	SessionExpiry         uint32 `json:"session_expiry"`
	LastWillDelayInterval uint32 `json:"last_will_delay_interval"`
	ConnectionID          uint64 `json:"connection_id,omitempty"`
	ReconnectTime         int64  `json:"reconnect_time,omitempty"`
	DistinctTime          int64  `json:"distinct_time,omitempty"`
}

// LastWillProperties carries the MQTT 5 will properties the sweeper cares
// about; message_expiry_interval is optional and defaults to 30 days.
type LastWillProperties struct {
	MessageExpiryInterval *uint32 `json:"message_expiry_interval,omitempty"`
	WillDelayInterval     *uint32 `json:"will_delay_interval,omitempty"`
	ContentType           string  `json:"content_type,omitempty"`
}

// DefaultLastWillExpirySeconds is used when no message_expiry_interval is
// carried in the will's properties: 30 days.
const DefaultLastWillExpirySeconds = 30 * 24 * 60 * 60

// LastWill is keyed by (cluster, client_id).
type LastWill struct {
	ClientID           string              `json:"client_id"`
	WillPayload        []byte              `json:"will_payload,omitempty"`
	LastWillProperties *LastWillProperties `json:"last_will_properties,omitempty"`
}

// ExpirySeconds returns the expiry interval to apply to this last will,
// falling back to DefaultLastWillExpirySeconds when unset. This applies the
// default both when LastWillProperties is present-but-empty and when it is
// nil entirely; a divergence from message_expire.rs's last_will_message_expire,
// which skips the sweep altogether for a nil properties value (see DESIGN.md).
func (lw LastWill) ExpirySeconds() int64 {
	if lw.LastWillProperties != nil && lw.LastWillProperties.MessageExpiryInterval != nil {
		return int64(*lw.LastWillProperties.MessageExpiryInterval)
	}
	return DefaultLastWillExpirySeconds
}

// Connector is unique by (cluster, connector_name).
type Connector struct {
	ConnectorName string `json:"connector_name"`
	ConnectorType string `json:"connector_type,omitempty"`
	Config        string `json:"config"`
}

// Codecs for each domain type, all backed by the shared JSON codec.
var (
	UserCodec      = JSONCodec[User]()
	TopicCodec     = JSONCodec[Topic]()
	SessionCodec   = JSONCodec[Session]()
	LastWillCodec  = JSONCodec[LastWill]()
	ConnectorCodec = JSONCodec[Connector]()
)
