package message

import "github.com/librescoot/samsunghvac/pkg/nasa/packet"

// Known message ids. Values taken from the original protocol's message
// catalog (parser/src/message.rs and client/src/message.rs generations).
//
// SetTemp (0x4201) and CurrentTemp (0x4203) are the canonical ids for
// the indoor unit's target and sensed temperature registers. The source
// carries an unresolved ambiguity where an earlier generation aliased
// these same two ids as EvaInTemp/EvaOutTemp and a later generation
// introduced other ids for those names; this catalog defines only the
// SetTemp/CurrentTemp names, since both generations agree on what these
// two ids decode to. See DESIGN.md for the full reasoning.
var (
	SetTemp     = Descriptor[uint16, Celsius]{ID: 0x4201, FromRepr: celsiusFromRepr}
	CurrentTemp = Descriptor[uint16, Celsius]{ID: 0x4203, FromRepr: celsiusFromRepr}

	OutdoorTemp            = Descriptor[uint16, Celsius]{ID: 0x8204, FromRepr: celsiusFromRepr}
	OutdoorDischargeTemp   = Descriptor[uint16, Celsius]{ID: 0x820a, FromRepr: celsiusFromRepr}
	OutdoorExchangerTemp   = Descriptor[uint16, Celsius]{ID: 0x8218, FromRepr: celsiusFromRepr}

	Power = Descriptor[uint8, PowerSetting]{ID: 0x4000, FromRepr: powerSettingFromRepr}
	Mode  = Descriptor[uint8, OperationMode]{ID: 0x4001, FromRepr: operationModeFromRepr}

	Defrost = Descriptor[uint8, Bool]{ID: 0x402e, FromRepr: boolFromRepr}
)

// Message ids that are read/monitored but have no typed decoding — these
// are referenced directly by Id for building Read requests against raw
// registers the catalog has not yet modeled.
const (
	FanSpeed          packet.MessageId = 0x4006
	FanModeReal       packet.MessageId = 0x4007
	Thermo            packet.MessageId = 0x4028
	UseSilence        packet.MessageId = 0x4045
	ControlSilence    packet.MessageId = 0x4046
	OutdoorServiceMode packet.MessageId = 0x8000
	OutdoorDriveMode   packet.MessageId = 0x8001
	OutdoorMode        packet.MessageId = 0x8003
	OutdoorComp1Status packet.MessageId = 0x8010
	Outdoor4WayStatus  packet.MessageId = 0x801a
	IndoorDefrostStage packet.MessageId = 0x8061
)
