package priority

import "testing"

type testResponse struct {
	id ObjectId
}

func (r testResponse) ObjectID() ObjectId { return r.id }

func TestResponseQueue_InitialConditions(t *testing.T) {
	q := NewResponseQueue[testResponse]()
	if _, ok := q.PopResponse(); ok {
		t.Fatal("expected PopResponse to fail on an empty queue")
	}
	for i := ObjectId(0); i < 100; i++ {
		if q.AlreadyQueued(i) {
			t.Fatalf("AlreadyQueued(%d) = true on an empty queue", i)
		}
	}
}

func TestResponseQueue_Pop(t *testing.T) {
	q := NewResponseQueue[testResponse]()
	a := testResponse{id: 10}
	b := testResponse{id: 15}
	c := testResponse{id: 6}

	q.QueueResponse(a)
	q.QueueResponse(b)
	q.QueueResponse(c)

	for _, want := range []testResponse{a, b, c} {
		got, ok := q.PopResponse()
		if !ok || got.id != want.id {
			t.Fatalf("PopResponse() = (%v, %v), want (%v, true)", got, ok, want)
		}
	}
}

func TestResponseQueue_RejectsDuplicate(t *testing.T) {
	q := NewResponseQueue[testResponse]()
	if !q.QueueResponse(testResponse{id: 1}) {
		t.Fatal("expected first queue of id 1 to succeed")
	}
	if q.QueueResponse(testResponse{id: 1}) {
		t.Fatal("expected a second queue of the same id to be rejected")
	}
}

func TestResponseQueue_Clear(t *testing.T) {
	q := NewResponseQueue[testResponse]()
	q.QueueResponse(testResponse{id: 10})
	q.QueueResponse(testResponse{id: 15})
	q.QueueResponse(testResponse{id: 6})

	q.Clear()

	if _, ok := q.PopResponse(); ok {
		t.Fatal("expected PopResponse to fail after Clear")
	}
	for i := ObjectId(0); i < 100; i++ {
		if q.AlreadyQueued(i) {
			t.Fatalf("AlreadyQueued(%d) = true after Clear", i)
		}
	}
}
