package network

import (
	"encoding/json"
	"fmt"
	"time"

	"voxelstream/internal/environment"
)

type MessageType string

const (
	// client → server
	MessageSubscribe MessageType = "subscribe"
	MessageMove      MessageType = "move"
	MessageJump      MessageType = "jump"
	MessageEdit      MessageType = "edit"
	MessageHighlight MessageType = "highlight"

	// server → client
	MessageWelcome MessageType = "welcome"
	MessageFrame   MessageType = "frame"
	MessageError   MessageType = "error"
)

type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       uint64          `json:"seq"`
	Payload   json.RawMessage `json:"payload"`
}

type Subscribe struct {
	Name string `json:"name,omitempty"`
}

// Move carries the requested horizontal walk direction. A zero vector stops.
type Move struct {
	Dir [3]float64 `json:"dir"`
}

type Edit struct {
	Target  [3]float32 `json:"target"`
	Placing bool       `json:"placing"`
}

type Highlight struct {
	Target  [3]float32 `json:"target"`
	Visible bool       `json:"visible"`
}

type Welcome struct {
	SessionID string `json:"sessionId"`
	ChunkSize int    `json:"chunkSize"`
}

type Frame struct {
	Tick            uint64            `json:"tick"`
	Observer        [3]float64        `json:"observer"`
	Grounded        bool              `json:"grounded"`
	Lighting        environment.State `json:"lighting"`
	ActiveChunks    []string          `json:"activeChunks"`
	GoldenCollected int               `json:"goldenCollected"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChunkSummary describes an active chunk for the HTTP listing.
type ChunkSummary struct {
	Key     string  `json:"key"`
	CenterX float64 `json:"centerX"`
	CenterZ float64 `json:"centerZ"`
	Version uint64  `json:"version"`
	Voxels  int     `json:"voxels"`
	Golden  int     `json:"goldenCollected"`
}

func Encode(msg Envelope) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	if env.Type == "" {
		return env, fmt.Errorf("envelope without type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return v, nil
}
