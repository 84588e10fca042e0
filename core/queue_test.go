package orchestration

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePreservesOrderAcrossProducers(t *testing.T) {
	q := newQueue[int]()

	const producers, perProducer = 4, 250
	wg := sync.WaitGroup{}
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.push(p*perProducer + i)
			}
		}()
	}

	lastSeen := make(map[int]int, producers)
	for p := range producers {
		lastSeen[p] = -1
	}
	for range producers * perProducer {
		item, ok := q.pop()
		if !ok {
			t.Fatalf("queue closed unexpectedly")
		}
		producer, seq := item.value/perProducer, item.value%perProducer
		if seq <= lastSeen[producer] {
			t.Fatalf("producer %d delivered %d after %d", producer, seq, lastSeen[producer])
		}
		lastSeen[producer] = seq
	}
	wg.Wait()

	if got := q.len(); got != 0 {
		t.Fatalf("expected drained queue, got %d items", got)
	}
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := newQueue[string]()
	q.push("a")
	q.push("b")
	q.close()

	if q.push("c") {
		t.Fatalf("expected push after close to be rejected")
	}

	for _, want := range []string{"a", "b"} {
		item, ok := q.pop()
		if !ok || item.value != want {
			t.Fatalf("expected %q, got %q (ok=%v)", want, item.value, ok)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatalf("expected closed queue to report drained")
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := newQueue[int]()
	got := make(chan int, 1)
	go func() {
		item, _ := q.pop()
		got <- item.value
	}()

	time.Sleep(10 * time.Millisecond)
	q.push(7)

	select {
	case value := <-got:
		if value != 7 {
			t.Fatalf("expected 7, got %d", value)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop never woke up")
	}
}
