package domain

// VideoFrame is the MessagePack payload of the video stream.
type VideoFrame struct {
	RawFrame []byte `msgpack:"raw_frame"`
}
