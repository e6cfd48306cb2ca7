package events

import (
	"context"
	"testing"
	"time"
)

func TestNewKafkaProducer_DisabledWithoutBrokersOrTopic(t *testing.T) {
	if p := NewKafkaProducer(nil, "linkbot-events"); p != nil {
		t.Error("producer should be nil without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("producer should be nil without a topic")
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer

	if err := p.Emit(context.Background(), &LinkEvent{EventType: TypeCodeIssued}); err != nil {
		t.Errorf("Emit on nil producer = %v, want nil", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil producer = %v, want nil", err)
	}
}

func TestEmitAsync_NilSafe(t *testing.T) {
	// Neither call may panic or start a goroutine that does.
	EmitAsync(nil, &LinkEvent{EventType: TypeCodeIssued, CreatedAt: time.Now()})
	EmitAsync(NewOTelEmitter(nil), nil)
}

func TestNewOTelEmitter_NoopWithoutProvider(t *testing.T) {
	emitter := NewOTelEmitter(nil)
	if emitter == nil {
		t.Fatal("emitter should never be nil")
	}
	if err := emitter.Emit(context.Background(), &LinkEvent{EventType: TypeAccountBound}); err != nil {
		t.Errorf("noop Emit = %v, want nil", err)
	}
}
