// broadcast/broadcast.go
package broadcast

import (
	"github.com/chessworld/gameserver/room"
)

// Recorder receives delivery outcomes. Satisfied by monitor.Monitor; a nil
// recorder disables accounting.
type Recorder interface {
	IncBroadcastsSent()
	IncBroadcastFailures()
}

// 基于房间的广播器: delivers one message to every subscriber of a room.
// Each delivery only enqueues on that subscriber's own outbound queue, so
// one slow or dead connection cannot stall the rest. Failed subscribers are
// returned to the caller, which removes them from the room.
type RoomBroadcaster struct {
	recorder Recorder
}

func NewRoomBroadcaster(recorder Recorder) *RoomBroadcaster {
	return &RoomBroadcaster{recorder: recorder}
}

func (b *RoomBroadcaster) Publish(roomID string, subscribers []room.Subscriber, message string) []room.Subscriber {
	var failed []room.Subscriber
	for _, sub := range subscribers {
		if err := sub.Send(message); err != nil {
			failed = append(failed, sub)
			if b.recorder != nil {
				b.recorder.IncBroadcastFailures()
			}
			continue
		}
		if b.recorder != nil {
			b.recorder.IncBroadcastsSent()
		}
	}
	return failed
}
