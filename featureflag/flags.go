package featureflag

type Flag string

const (
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableStripUpdateBroadcast      Flag = "DISABLE_STRIP_UPDATE_BROADCAST"
)
