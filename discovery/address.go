package discovery

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MqttAddressType is the type tag of broker addresses.
const MqttAddressType = "MqttAddress"

// Address is a broker address. BrokerURI is the GBID of the backend the
// participant is reachable through; Topic is its inbox on that broker.
type Address struct {
	BrokerURI string
	Topic     string
}

type wireAddress struct {
	TypeName  string `json:"_typeName"`
	BrokerURI string `json:"brokerUri,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// Encode serializes the address.
func (a Address) Encode() (string, error) {
	b, err := json.Marshal(wireAddress{TypeName: MqttAddressType, BrokerURI: a.BrokerURI, Topic: a.Topic})
	if err != nil {
		return "", fmt.Errorf("encode address: %w", err)
	}
	return string(b), nil
}

// MustEncode serializes the address and panics on failure.
func (a Address) MustEncode() string {
	s, err := a.Encode()
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeAddress parses a serialized broker address. Other address types are rejected.
func DecodeAddress(serialized string) (Address, error) {
	var w wireAddress
	if err := json.UnmarshalFromString(serialized, &w); err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	if w.TypeName != MqttAddressType {
		return Address{}, fmt.Errorf("decode address: unsupported address type %q", w.TypeName)
	}
	return Address{BrokerURI: w.BrokerURI, Topic: w.Topic}, nil
}

// GbidOf returns the GBID encoded in a serialized address, or defaultGbid
// when the address is not a broker address.
func GbidOf(serialized, defaultGbid string) string {
	addr, err := DecodeAddress(serialized)
	if err != nil || addr.BrokerURI == "" {
		return defaultGbid
	}
	return addr.BrokerURI
}

// WithGbid returns the serialized address rewritten to gbid. Addresses that
// are not broker addresses are returned unchanged.
func WithGbid(serialized, gbid string) string {
	addr, err := DecodeAddress(serialized)
	if err != nil {
		return serialized
	}
	addr.BrokerURI = gbid
	out, err := addr.Encode()
	if err != nil {
		return serialized
	}
	return out
}
