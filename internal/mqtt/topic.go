package mqtt

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"cloudpico-positioning/internal/message"
)

// System property keys carried in the topic property bag.
const (
	propContentType     = "$.ct"
	propContentEncoding = "$.ce"
	propMessageID       = "$.mid"
)

// Topics have the form {prefix}/{channel}/{bag}, where bag is the
// URL-encoded property list of the message (possibly empty).
func channelTopic(prefix, channel string, msg message.Message) string {
	return prefix + "/" + channel + "/" + encodeProperties(msg)
}

func channelFilter(prefix, channel string) string {
	return prefix + "/" + channel + "/#"
}

func encodeProperties(msg message.Message) string {
	pairs := make([][2]string, 0, len(msg.Properties)+3)

	keys := make([]string, 0, len(msg.Properties))
	for k := range msg.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, msg.Properties[k]})
	}
	if msg.ContentType != "" {
		pairs = append(pairs, [2]string{propContentType, msg.ContentType})
	}
	if msg.ContentEncoding != "" {
		pairs = append(pairs, [2]string{propContentEncoding, msg.ContentEncoding})
	}
	if msg.MessageID != "" {
		pairs = append(pairs, [2]string{propMessageID, msg.MessageID})
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p[0]))
		b.WriteByte('=')
		b.WriteString(escape(p[1]))
	}
	return b.String()
}

// escape keeps '+' out of the topic; it is a wildcard in MQTT.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// decodeTopic splits a received topic into the message metadata.
func decodeTopic(prefix, channel, topic string, payload []byte) (message.Message, error) {
	base := prefix + "/" + channel
	var bag string
	switch {
	case topic == base:
	case strings.HasPrefix(topic, base+"/"):
		bag = strings.TrimPrefix(topic, base+"/")
	default:
		return message.Message{}, fmt.Errorf("topic %q is not on channel %q", topic, channel)
	}

	msg := message.Message{Payload: payload, Properties: map[string]string{}}
	if bag == "" {
		return msg, nil
	}

	values, err := url.ParseQuery(bag)
	if err != nil {
		return message.Message{}, fmt.Errorf("parse property bag %q: %w", bag, err)
	}
	for k, vs := range values {
		v := vs[len(vs)-1]
		switch k {
		case propContentType:
			msg.ContentType = v
		case propContentEncoding:
			msg.ContentEncoding = v
		case propMessageID:
			msg.MessageID = v
		default:
			msg.Properties[k] = v
		}
	}
	return msg, nil
}
