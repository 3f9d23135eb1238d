package util

import (
	"bytes"
	"encoding/binary"
)

const (
	// TTS接口返回的裸PCM固定为24kHz单声道16位
	TTSSampleRate = 24000
	TTSChannels   = 1
	ttsBitDepth   = 16
)

// PCMToWAV 给裸PCM数据加上44字节的RIFF头，产出可直接播放的WAV
func PCMToWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * ttsBitDepth / 8
	blockAlign := channels * ttsBitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM格式
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(ttsBitDepth))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
