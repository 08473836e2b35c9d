package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/medbill/ledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestGetSaramaConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Kafka.ClientID = "ledger-test"

	plain := GetSaramaConfig(cfg)
	assert.Equal(t, "ledger-test", plain.ClientID)
	assert.False(t, plain.Net.SASL.Enable)
	assert.True(t, plain.Producer.Return.Successes)

	cfg.Kafka.UseSASL = true
	cfg.Kafka.SASLMechanism = sarama.SASLTypePlaintext
	cfg.Kafka.SASLUser = "u"
	cfg.Kafka.SASLPassword = "p"

	sasl := GetSaramaConfig(cfg)
	assert.True(t, sasl.Net.SASL.Enable)
	assert.True(t, sasl.Net.TLS.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypePlaintext), sasl.Net.SASL.Mechanism)
}
