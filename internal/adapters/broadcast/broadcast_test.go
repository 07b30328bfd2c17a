package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func event(scanID string, kind model.EventKind) model.Event {
	return model.Event{ScanID: scanID, Kind: kind, Message: string(kind), Time: time.Now().UTC()}
}

func TestHubSubscriptions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hub with two subscribers", t, func() {
		h := NewHub(WithSubscriberBuffer(2))
		all, cancelAll := h.Subscribe("")
		defer cancelAll()
		one, cancelOne := h.Subscribe("scan-1")
		defer cancelOne()

		Convey("When events for different scans are published", func() {
			h.Publish(ctx, event("scan-1", model.EventScanStarted))
			h.Publish(ctx, event("scan-2", model.EventScanStarted))

			Convey("Then filters are honoured", func() {
				So(len(all), ShouldEqual, 2)
				So(len(one), ShouldEqual, 1)
				So((<-one).ScanID, ShouldEqual, "scan-1")
			})
		})

		Convey("When a subscriber falls behind", func() {
			for i := 0; i < 5; i++ {
				h.Publish(ctx, event("scan-1", model.EventCandidateFound))
			}

			Convey("Then extra events are dropped instead of blocking", func() {
				So(len(all), ShouldEqual, 2)
			})
		})

		Convey("When a subscriber cancels", func() {
			cancelOne()

			Convey("Then it is removed", func() {
				So(h.Subscribers(), ShouldEqual, 1)
			})
		})
	})
}

func TestHubWebSocket(t *testing.T) {
	Convey("Given a hub served over HTTP", t, func() {
		h := NewHub()
		srv := httptest.NewServer(h)
		defer srv.Close()
		defer h.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?scan_id=scan-7"
		c, _, err := websocket.Dial(ctx, url, nil)
		So(err, ShouldBeNil)
		defer c.Close(websocket.StatusNormalClosure, "")

		for h.Subscribers() == 0 && ctx.Err() == nil {
			time.Sleep(10 * time.Millisecond)
		}

		Convey("When an event for the scan is published", func() {
			h.Publish(ctx, event("scan-8", model.EventScanStarted))
			h.Publish(ctx, event("scan-7", model.EventRosterConfirmed))

			var got model.Event
			err := wsjson.Read(ctx, c, &got)

			Convey("Then the client receives only its scan's events as JSON", func() {
				So(err, ShouldBeNil)
				So(got.ScanID, ShouldEqual, "scan-7")
				So(got.Kind, ShouldEqual, model.EventRosterConfirmed)
			})
		})
	})
}

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	token    *fakeToken
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return c.token
}

func (c *fakeClient) Disconnect(uint) {}

func TestMQTTEmitter(t *testing.T) {
	ctx := context.Background()

	Convey("Given a connected emitter", t, func() {
		client := &fakeClient{token: &fakeToken{complete: true}}
		e := NewMQTTEmitter(MQTTConfig{Topic: "lineup/events"})
		e.client = client
		e.setConnected(true)

		Convey("When an event is published", func() {
			e.Publish(ctx, event("scan-1", model.EventRosterConfirmed))

			Convey("Then it goes to the kind topic as JSON", func() {
				So(client.topics, ShouldResemble, []string{"lineup/events/roster_confirmed"})
				var got model.Event
				So(json.Unmarshal(client.payloads[0], &got), ShouldBeNil)
				So(got.ScanID, ShouldEqual, "scan-1")
			})

			Convey("Then delivery is counted", func() {
				deadline := time.Now().Add(2 * time.Second)
				for e.Stats().Published["lineup/events/roster_confirmed"] == 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(e.Stats().Published["lineup/events/roster_confirmed"], ShouldEqual, uint64(1))
			})
		})

		Convey("When the broker rejects the publish", func() {
			client.token = &fakeToken{complete: true, err: errors.New("not authorized")}
			e.Publish(ctx, event("scan-1", model.EventScanStopped))

			Convey("Then the error is counted", func() {
				deadline := time.Now().Add(2 * time.Second)
				for e.Stats().Errors == 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(e.Stats().Errors, ShouldEqual, uint64(1))
			})
		})

		Convey("When disconnected", func() {
			e.Disconnect()
			e.Publish(ctx, event("scan-1", model.EventScanStopped))

			Convey("Then nothing is sent", func() {
				So(client.topics, ShouldBeEmpty)
				So(e.Stats().Connected, ShouldBeFalse)
				So(e.Stats().Errors, ShouldEqual, uint64(1))
			})
		})
	})
}

type recordingSink struct {
	events []model.Event
}

func (r *recordingSink) Publish(_ context.Context, ev model.Event) {
	r.events = append(r.events, ev)
}

func TestFanout(t *testing.T) {
	Convey("Given a fanout of a log sink and two recorders", t, func() {
		a, b := &recordingSink{}, &recordingSink{}
		f := Fanout{NewLogSink(logger.Get()), a, b}

		f.Publish(context.Background(), event("scan-1", model.EventCandidateFound))

		Convey("Then every sink receives the event", func() {
			So(len(a.events), ShouldEqual, 1)
			So(len(b.events), ShouldEqual, 1)
		})
	})
}
