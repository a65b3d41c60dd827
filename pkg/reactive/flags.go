package reactive

// Node flags. The low bits describe what a node is, the rest its state.
const (
	flagDerived uint32 = 1 << iota
	flagEffect
	flagRenderEffect
	flagBlockEffect
	flagBranchEffect
	flagRootEffect
	flagBoundaryEffect
	flagAsyncEffect
	flagUserEffect

	flagClean
	flagDirty
	flagMaybeDirty

	flagUnowned
	flagDisconnected
	flagInert
	flagDestroyed
	flagError
	flagEffectRan
	flagTransparent
	flagPreserved
	flagUpdating
	flagWasMarked
)

const (
	statusMask = flagClean | flagDirty | flagMaybeDirty
	kindMask   = flagDerived | flagEffect | flagRenderEffect | flagBlockEffect | flagBranchEffect | flagRootEffect | flagBoundaryEffect | flagAsyncEffect | flagUserEffect
	effectMask = kindMask &^ flagDerived
)

// setStatus replaces the clean/dirty/maybe-dirty bits of n.
func setStatus(n *node, status uint32) {
	n.f = (n.f &^ statusMask) | status
	if status == flagClean {
		n.f &^= flagWasMarked
	}
}

// EffectKind identifies the scheduling class of an effect.
type EffectKind uint8

const (
	KindUser EffectKind = iota
	KindRender
	KindBlock
	KindBranch
	KindRoot
	KindBoundary
	KindAsync
)

// String returns the string representation of the EffectKind.
func (k EffectKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindRender:
		return "render"
	case KindBlock:
		return "block"
	case KindBranch:
		return "branch"
	case KindRoot:
		return "root"
	case KindBoundary:
		return "boundary"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

func (k EffectKind) flags() uint32 {
	switch k {
	case KindUser:
		return flagEffect | flagUserEffect
	case KindRender:
		return flagRenderEffect
	case KindBlock:
		return flagBlockEffect
	case KindBranch:
		return flagBranchEffect
	case KindRoot:
		return flagRootEffect | flagPreserved
	case KindBoundary:
		return flagBlockEffect | flagBoundaryEffect | flagTransparent | flagPreserved
	case KindAsync:
		return flagAsyncEffect | flagPreserved
	default:
		return flagEffect
	}
}

func kindOf(f uint32) EffectKind {
	switch {
	case f&flagBoundaryEffect != 0:
		return KindBoundary
	case f&flagRootEffect != 0:
		return KindRoot
	case f&flagBranchEffect != 0:
		return KindBranch
	case f&flagBlockEffect != 0:
		return KindBlock
	case f&flagAsyncEffect != 0:
		return KindAsync
	case f&flagRenderEffect != 0:
		return KindRender
	default:
		return KindUser
	}
}

func statusString(f uint32) string {
	switch {
	case f&flagDestroyed != 0:
		return "destroyed"
	case f&flagDirty != 0:
		return "dirty"
	case f&flagMaybeDirty != 0:
		return "maybe-dirty"
	default:
		return "clean"
	}
}
