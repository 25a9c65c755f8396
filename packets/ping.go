package packets

import (
	"io"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

const (
	cmdPingReq  uint8 = 0xC0
	cmdPingResp uint8 = 0xD0
)

type PingReq struct{}

type PingResp struct{}

func (p *PingReq) Type() mqtt.PacketType { return mqtt.PingReq }

func (p *PingReq) MarshalBinary() (b []byte, err error) {
	return []byte{cmdPingReq, 0}, nil
}

func (p *PingReq) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, p)
}

func (p *PingResp) Type() mqtt.PacketType { return mqtt.PingResp }

func (p *PingResp) MarshalBinary() (b []byte, err error) {
	return []byte{cmdPingResp, 0}, nil
}

func (p *PingResp) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, p)
}

func (p *PingResp) decode(flags uint8, r *util.Reader) error {
	if err := checkFlags(mqtt.PingResp, flags); err != nil {
		return err
	}
	return checkConsumed(mqtt.PingResp, r)
}
