package model

import (
	"github.com/golang/protobuf/proto"
)

// Marshal and Unmarshal below move Block and Transaction to and from the
// payload BLOB columns of the blocks/transactions tables. The teacher
// moves bc.Block bytes through sqlite the same way (store.go's
// b.Bytes()/b.FromBytes(bits)), using a generated protobuf accessor; no
// protoc toolchain runs in this exercise, so the wire encoding here is
// hand-written directly against proto.Buffer's varint/raw-bytes
// primitives rather than against generated struct tags.

// Marshal encodes the block's header fields (not its transactions,
// which are persisted as separate rows) into a proto.Buffer payload.
func (b *Block) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeStringBytes(b.ID); err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(b.Height); err != nil {
		return nil, err
	}
	if err := buf.EncodeStringBytes(b.PreviousBlockID); err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(uint64(b.Timestamp)); err != nil {
		return nil, err
	}
	if err := buf.EncodeRawBytes(b.GeneratorPublicKey); err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(uint64(b.HeightPrevious)); err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(uint64(b.HeightPrevoted)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBlock decodes a payload produced by Block.Marshal. It does
// not populate Transactions; those are loaded separately from the
// transactions table and attached by the caller.
func UnmarshalBlock(payload []byte) (*Block, error) {
	buf := proto.NewBuffer(payload)
	b := &Block{}
	var err error
	if b.ID, err = buf.DecodeStringBytes(); err != nil {
		return nil, err
	}
	if b.Height, err = buf.DecodeVarint(); err != nil {
		return nil, err
	}
	if b.PreviousBlockID, err = buf.DecodeStringBytes(); err != nil {
		return nil, err
	}
	ts, err := buf.DecodeVarint()
	if err != nil {
		return nil, err
	}
	b.Timestamp = int64(ts)
	if b.GeneratorPublicKey, err = buf.DecodeRawBytes(true); err != nil {
		return nil, err
	}
	hp, err := buf.DecodeVarint()
	if err != nil {
		return nil, err
	}
	b.HeightPrevious = uint32(hp)
	hv, err := buf.DecodeVarint()
	if err != nil {
		return nil, err
	}
	b.HeightPrevoted = uint32(hv)
	return b, nil
}

// Marshal encodes a transaction's type and payload into a proto.Buffer
// payload for the transactions table's payload BLOB column.
func (tx *Transaction) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeVarint(uint64(tx.Type)); err != nil {
		return nil, err
	}
	switch tx.Type {
	case TRANSFER:
		if err := buf.EncodeRawBytes(tx.Transfer.RecipientPublicKey); err != nil {
			return nil, err
		}
		if err := buf.EncodeVarint(uint64(tx.Transfer.Amount)); err != nil {
			return nil, err
		}
	case VOTE:
		if err := buf.EncodeRawBytes(tx.Vote.DelegatePublicKey); err != nil {
			return nil, err
		}
		unvote := uint64(0)
		if tx.Vote.Unvote {
			unvote = 1
		}
		if err := buf.EncodeVarint(unvote); err != nil {
			return nil, err
		}
	case DELEGATE_REGISTER:
		if err := buf.EncodeStringBytes(tx.Delegate.Name); err != nil {
			return nil, err
		}
	case MULTISIGNATURE:
		if err := buf.EncodeRawBytes(tx.Multisig.PublicKeys); err != nil {
			return nil, err
		}
		if err := buf.EncodeVarint(uint64(tx.Multisig.Min)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalTransactionPayload decodes a payload produced by
// Transaction.Marshal into the Type-specific payload field of tx. The
// caller is responsible for ID/SenderPublicKey/BlockID/Seq, which are
// carried in dedicated columns, not in the payload blob.
func UnmarshalTransactionPayload(tx *Transaction, payload []byte) error {
	buf := proto.NewBuffer(payload)
	typ, err := buf.DecodeVarint()
	if err != nil {
		return err
	}
	tx.Type = Type(typ)
	switch tx.Type {
	case TRANSFER:
		p := &TransferPayload{}
		if p.RecipientPublicKey, err = buf.DecodeRawBytes(true); err != nil {
			return err
		}
		amt, err := buf.DecodeVarint()
		if err != nil {
			return err
		}
		p.Amount = int64(amt)
		tx.Transfer = p
	case VOTE:
		p := &VotePayload{}
		if p.DelegatePublicKey, err = buf.DecodeRawBytes(true); err != nil {
			return err
		}
		unvote, err := buf.DecodeVarint()
		if err != nil {
			return err
		}
		p.Unvote = unvote != 0
		tx.Vote = p
	case DELEGATE_REGISTER:
		p := &DelegatePayload{}
		if p.Name, err = buf.DecodeStringBytes(); err != nil {
			return err
		}
		tx.Delegate = p
	case MULTISIGNATURE:
		p := &MultisigPayload{}
		if p.PublicKeys, err = buf.DecodeRawBytes(true); err != nil {
			return err
		}
		min, err := buf.DecodeVarint()
		if err != nil {
			return err
		}
		p.Min = uint32(min)
		tx.Multisig = p
	}
	return nil
}
