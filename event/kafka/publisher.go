// Copyright 2024 The eth-indexer Authors
// This file is part of the eth-indexer library.
//
// The eth-indexer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The eth-indexer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the eth-indexer library. If not, see <http://www.gnu.org/licenses/>.

// Package kafka publishes chain events for downstream consumers. Publishing
// is optional; the scheduler skips it when no brokers are configured.
package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Shopify/sarama"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/logutil"
)

var logger = logutil.NewModuleLogger("kafka")

// DefaultTopic is the topic block events are published to.
const DefaultTopic = "eth-indexer.blocks"

// BlockEvent is the compact record published once a block task completes.
type BlockEvent struct {
	Number           uint64 `json:"blockNumber"`
	Hash             string `json:"blockHash"`
	TransactionCount int    `json:"transactionCount"`
}

// Key implements the partitioning key for a block event.
func (e *BlockEvent) Key() string {
	return strconv.FormatUint(e.Number, 10)
}

// Publisher wraps an async producer. Publish errors are logged by a drain
// goroutine and never surface into block tasks.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}
}

// NewPublisher connects an async producer to the given brokers.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond

	id, _ := uuid.GenerateUUID()
	config.ClientID = fmt.Sprintf("eth-indexer-%s", id)

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "starting Kafka producer")
	}

	p := &Publisher{
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	logger.Infow("connected to Kafka brokers", "brokers", brokers, "topic", topic)
	return p, nil
}

// PublishBlock enqueues a block event. The producer delivers asynchronously.
func (p *Publisher) PublishBlock(ev *BlockEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding block event")
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Key()),
		Value: sarama.ByteEncoder(data),
	}
	return nil
}

// Close flushes pending messages and shuts the producer down.
func (p *Publisher) Close() error {
	err := p.producer.Close()
	close(p.done)
	return err
}

func (p *Publisher) drainErrors() {
	for {
		select {
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			logger.Errorw("publishing block event failed", "topic", perr.Msg.Topic, "err", perr.Err)
		case <-p.done:
			return
		}
	}
}
