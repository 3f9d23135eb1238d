package util

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMToWAV(t *testing.T) {
	pcm := make([]byte, 4800) // 0.1秒的24kHz单声道16位音频
	wav := PCMToWAV(pcm, TTSSampleRate, TTSChannels)

	require.Len(t, wav, 44+len(pcm))

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM格式")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "单声道")
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[28:32]), "字节率")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "位深")
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestPCMToWAVEmpty(t *testing.T) {
	wav := PCMToWAV(nil, TTSSampleRate, TTSChannels)
	require.Len(t, wav, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(wav[40:44]))
}
