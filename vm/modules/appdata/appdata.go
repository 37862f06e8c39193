// Package appdata implements application and namespace registration and the
// policy-gated KV opcodes: APP_REGISTER, NAMESPACE_CREATE, KV_PUT, KV_DEL and
// KV_APPEND. The "raw" codec concatenates appended bytes
// in place; every other codec keeps appended chunks as a list of discrete
// records instead of splicing them together.
package appdata

import (
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"
)

const codecRaw = "raw"

func init() {
	vm.Register(core.OpAppRegister, handleAppRegister)
	vm.Register(core.OpNamespaceCreate, handleNamespaceCreate)
	vm.Register(core.OpKVPut, handleKVPut)
	vm.Register(core.OpKVDel, handleKVDel)
	vm.Register(core.OpKVAppend, handleKVAppend)
}

// namespaceContentID derives a namespace's id from the app it belongs to,
// the publisher creating it, and the chosen name, so the same (app,
// publisher, name) triple always resolves to the same namespace id.
func namespaceContentID(appID core.ID, publisher core.PubKey, name string) core.ID {
	return crypto.HashMulti([]byte("ns"), appID[:], publisher[:], []byte(name))
}

func handleAppRegister(ctx *vm.Context, op *core.Op) error {
	p := op.AppRegister
	appID := p.AppID
	if _, exists := ctx.SP.App(appID); exists {
		return core.NewTxError(core.KindDuplicate, "app id already registered")
	}
	ctx.SP.PutApp(&core.App{AppID: appID, Meta: p.Meta})
	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":     "APP_REGISTER",
		"app_id": appID.Hex(),
	}))
	return nil
}

func handleNamespaceCreate(ctx *vm.Context, op *core.Op) error {
	p := op.NamespaceCreate
	if _, ok := ctx.SP.App(p.AppID); !ok {
		return core.NewTxError(core.KindNoNamespace, "namespace references unknown app id")
	}

	nsID := namespaceContentID(p.AppID, ctx.Tx.Sender, p.Name)
	if _, exists := ctx.SP.Namespace(nsID); exists {
		return core.NewTxError(core.KindDuplicate, "namespace id already exists")
	}

	allow := make(map[core.PubKey]bool, len(p.Allowlist))
	for _, a := range p.Allowlist {
		allow[a] = true
	}
	ns := &core.Namespace{
		NsID:          nsID,
		Owner:         ctx.Tx.Sender,
		Policy:        p.Policy,
		Allowlist:     allow,
		MinWriteStake: p.MinWriteStake,
	}
	ctx.SP.PutNamespace(ns)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":    "NAMESPACE_CREATE",
		"ns_id": nsID.Hex(),
		"owner": ctx.Tx.Sender.Hex(),
	}))
	return nil
}

func handleKVPut(ctx *vm.Context, op *core.Op) error {
	p := op.KVPut
	ns, ok := ctx.SP.Namespace(p.NsID)
	if !ok {
		return core.NewTxError(core.KindNoNamespace, "unknown namespace id")
	}
	if err := ns.CanWrite(ctx.Tx.Sender, ctx.SenderStake()); err != nil {
		return err
	}

	key := core.KVKey{NsID: p.NsID, Key: p.Key}
	entry := &core.KVEntry{
		Codec:     p.Codec,
		Hash:      crypto.Hash(p.Value),
		Inline:    p.Value,
		UpdatedAt: ctx.Now,
		Updater:   ctx.Tx.Sender,
	}
	ctx.SP.KVPut(key, entry)

	ctx.Emit(core.NewEvent(core.EventKVUpdated, map[string]string{
		"ns_id": p.NsID.Hex(),
		"key":   p.Key,
		"op":    "PUT",
	}))
	return nil
}

func handleKVDel(ctx *vm.Context, op *core.Op) error {
	p := op.KVDel
	ns, ok := ctx.SP.Namespace(p.NsID)
	if !ok {
		return core.NewTxError(core.KindNoNamespace, "unknown namespace id")
	}
	if err := ns.CanWrite(ctx.Tx.Sender, ctx.SenderStake()); err != nil {
		return err
	}

	key := core.KVKey{NsID: p.NsID, Key: p.Key}
	if _, exists := ctx.SP.KVGet(key); !exists {
		return core.ErrNotFound
	}
	ctx.SP.KVDelete(key)

	ctx.Emit(core.NewEvent(core.EventKVUpdated, map[string]string{
		"ns_id": p.NsID.Hex(),
		"key":   p.Key,
		"op":    "DEL",
	}))
	return nil
}

func handleKVAppend(ctx *vm.Context, op *core.Op) error {
	p := op.KVAppend
	ns, ok := ctx.SP.Namespace(p.NsID)
	if !ok {
		return core.NewTxError(core.KindNoNamespace, "unknown namespace id")
	}
	if err := ns.CanWrite(ctx.Tx.Sender, ctx.SenderStake()); err != nil {
		return err
	}

	key := core.KVKey{NsID: p.NsID, Key: p.Key}
	entry, exists := ctx.SP.KVGet(key)
	if !exists {
		entry = &core.KVEntry{Codec: p.Codec}
	}
	if entry.Codec != p.Codec {
		return core.NewTxError(core.KindBadEncoding, "append codec does not match existing entry codec")
	}

	if p.Codec == codecRaw {
		entry.Inline = append(entry.Inline, p.Chunk...)
		entry.Hash = crypto.Hash(entry.Inline)
	} else {
		entry.List = append(entry.List, p.Chunk)
		entry.Hash = crypto.HashMulti(entry.List...)
	}
	entry.UpdatedAt = ctx.Now
	entry.Updater = ctx.Tx.Sender
	ctx.SP.KVPut(key, entry)

	ctx.Emit(core.NewEvent(core.EventKVUpdated, map[string]string{
		"ns_id": p.NsID.Hex(),
		"key":   p.Key,
		"op":    "APPEND",
	}))
	return nil
}
