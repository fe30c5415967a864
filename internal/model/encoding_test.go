package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockMarshalRoundTrip(t *testing.T) {
	b := &Block{
		ID:                 "b1",
		Height:             42,
		PreviousBlockID:    "b0",
		Timestamp:          1_700_000_000,
		GeneratorPublicKey: []byte("generator-public-key-0000000000"),
		HeightPrevious:     41,
		HeightPrevoted:     40,
	}

	payload, err := b.Marshal()
	assert.NoError(t, err)

	got, err := UnmarshalBlock(payload)
	assert.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Height, got.Height)
	assert.Equal(t, b.PreviousBlockID, got.PreviousBlockID)
	assert.Equal(t, b.Timestamp, got.Timestamp)
	assert.Equal(t, b.GeneratorPublicKey, got.GeneratorPublicKey)
	assert.Equal(t, b.HeightPrevious, got.HeightPrevious)
	assert.Equal(t, b.HeightPrevoted, got.HeightPrevoted)
}

func TestTransactionMarshalRoundTrip(t *testing.T) {
	cases := []*Transaction{
		{Type: TRANSFER, Transfer: &TransferPayload{RecipientPublicKey: []byte("recipient"), Amount: 12345}},
		{Type: VOTE, Vote: &VotePayload{DelegatePublicKey: []byte("delegate"), Unvote: true}},
		{Type: DELEGATE_REGISTER, Delegate: &DelegatePayload{Name: "d1"}},
		{Type: MULTISIGNATURE, Multisig: &MultisigPayload{PublicKeys: []byte("k1k2k3"), Min: 2}},
	}

	for _, tc := range cases {
		payload, err := tc.Marshal()
		assert.NoError(t, err)

		got := &Transaction{}
		err = UnmarshalTransactionPayload(got, payload)
		assert.NoError(t, err)
		assert.Equal(t, tc.Type, got.Type)

		switch tc.Type {
		case TRANSFER:
			assert.Equal(t, tc.Transfer, got.Transfer)
		case VOTE:
			assert.Equal(t, tc.Vote, got.Vote)
		case DELEGATE_REGISTER:
			assert.Equal(t, tc.Delegate, got.Delegate)
		case MULTISIGNATURE:
			assert.Equal(t, tc.Multisig, got.Multisig)
		}
	}
}
