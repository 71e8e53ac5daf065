// Package stream pushes watch state to websocket clients.
//
// Each watch is a topic. A client subscribes to one topic (or "*") and
// receives the latest view on join, then every transition after it.
package stream

import (
	"time"

	"github.com/flexifi/poolwatch/internal/model"
)

// View is the render contract for a watch: the display value and the CSS
// width string, plus status and error text.
type View struct {
	Watch     string      `json:"watch"`
	Status    model.Phase `json:"status"`
	Value     string      `json:"value,omitempty"`
	Width     string      `json:"width,omitempty"`
	Ratio     float64     `json:"ratio"`
	Block     uint64      `json:"block,omitempty"`
	Error     *ErrorView  `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ErrorView is the error payload of a failed watch.
type ErrorView struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// NewView renders st for watch. Only Ready states carry a value and width.
func NewView(watch string, st model.FetchState) View {
	v := View{
		Watch:     watch,
		Status:    st.Phase,
		UpdatedAt: st.At.UTC(),
	}
	switch st.Phase {
	case model.PhaseReady:
		v.Value = st.Metric.Display()
		v.Width = st.Metric.Width()
		v.Ratio = st.Metric.Ratio
		v.Block = st.Block
	case model.PhaseFailed:
		v.Error = &ErrorView{Kind: st.Err.Kind, Message: st.Err.Message}
	}
	return v
}

// Message is the websocket envelope.
type Message struct {
	Topic     string `json:"topic"`
	Timestamp string `json:"timestamp"`
	Data      View   `json:"data"`
}
