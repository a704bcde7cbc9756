package instruction

import (
	"xdao.co/introledger/address"
	"xdao.co/introledger/host"
	"xdao.co/introledger/state"
)

// NewCreateIntro builds a CreateIntro instruction for payer.
//
// Accounts: payer (signer), intro (writable), counter (writable), allocation service.
func NewCreateIntro(program, payer address.Address, name, message string) (host.Instruction, error) {
	intro, _, err := state.IntroAddress(program, payer)
	if err != nil {
		return host.Instruction{}, err
	}
	counter, _, err := state.CounterAddress(program, intro)
	if err != nil {
		return host.Instruction{}, err
	}
	return host.Instruction{
		ProgramID: program,
		Accounts: []host.AccountMeta{
			host.Signer(payer),
			host.Writable(intro),
			host.Writable(counter),
			host.Readonly(host.SystemProgramID),
		},
		Data: Pack(CreateIntro{Name: name, Message: message}),
	}, nil
}

// NewUpdateIntro builds an UpdateIntro instruction for payer.
//
// Accounts: payer (signer), intro (writable).
func NewUpdateIntro(program, payer address.Address, name, message string) (host.Instruction, error) {
	intro, _, err := state.IntroAddress(program, payer)
	if err != nil {
		return host.Instruction{}, err
	}
	return host.Instruction{
		ProgramID: program,
		Accounts: []host.AccountMeta{
			host.Signer(payer),
			host.Writable(intro),
		},
		Data: Pack(UpdateIntro{Name: name, Message: message}),
	}, nil
}

// NewAppendReply builds an AppendReply instruction adding reply number
// ordinal (the counter's current value) to intro.
//
// Accounts: replier (signer), intro (read-only), counter (writable), reply
// (writable), allocation service.
func NewAppendReply(program, replier, intro address.Address, ordinal uint8, reply string) (host.Instruction, error) {
	counter, _, err := state.CounterAddress(program, intro)
	if err != nil {
		return host.Instruction{}, err
	}
	replyAddr, _, err := state.ReplyAddress(program, intro, ordinal)
	if err != nil {
		return host.Instruction{}, err
	}
	return host.Instruction{
		ProgramID: program,
		Accounts: []host.AccountMeta{
			host.Signer(replier),
			host.Readonly(intro),
			host.Writable(counter),
			host.Writable(replyAddr),
			host.Readonly(host.SystemProgramID),
		},
		Data: Pack(AppendReply{Reply: reply}),
	}, nil
}
