// Package rigging declares the metanode types a character rig is described
// with: actors, skeletons, rigs and their components.
//
// Only the data model lives here. Building controls and applying poses are
// the job of the host application's tools, which read and write these
// nodes through the typed views below.
package rigging

import (
	"github.com/conduit-lang/metanode/internal/meta/schema"
)

// Attribute names
const (
	AttrSkeleton        = "skeleton"
	AttrExportMeshes    = "exportMeshes"
	AttrExportCollision = "exportCollision"
	AttrExportCloth     = "exportCloth"
	AttrActiveActor     = "activeActor"

	AttrBindPose = "bindPose"
	AttrZeroPose = "zeroPose"
	AttrRoot     = "root"
	AttrNoBind   = "noBindJoints"
	AttrNoExport = "noExportJoints"

	AttrRigComponents  = "rigComponents"
	AttrRig            = "rig"
	AttrBuilt          = "isBuilt"
	AttrSocket         = "socket"
	AttrComponentGroup = "componentGroup"
	AttrControls       = "controls"
	AttrBindJoints     = "bindJoints"
	AttrStartJoint     = "startJoint"
	AttrEndJoint       = "endJoint"
)

var (
	// SkeletonType stores a skeleton's root, its saved poses and the joints
	// left out of binding and export
	SkeletonType = schema.NewType("rigging.Skeleton").Attrs(
		schema.String(AttrBindPose),
		schema.String(AttrZeroPose),
		schema.Link(AttrRoot),
		schema.Links(AttrNoBind),
		schema.Links(AttrNoExport),
	).Build()

	// ActorType ties a skeleton to the geometry exported with it
	ActorType = schema.NewType("rigging.Actor").Attrs(
		schema.Link(AttrSkeleton),
		schema.Links(AttrExportMeshes),
		schema.Links(AttrExportCollision),
		schema.Links(AttrExportCloth),
	).Build()

	// ActiveActorType tracks the actor the user is working on
	ActiveActorType = schema.NewType("rigging.ActiveActor").Singleton("").Attrs(schema.Link(AttrActiveActor)).Build()

	// RigType collects the components of one rig
	RigType = schema.NewType("rigging.Rig").Attrs(schema.Links(AttrRigComponents)).Build()

	componentAttrs = schema.AttrSet{
		schema.Link(AttrRig),
		schema.Bool(AttrBuilt, false),
		schema.Link(AttrSocket),
		schema.Link(AttrComponentGroup),
		schema.Links(AttrControls),
		schema.Links(AttrBindJoints),
	}

	// ComponentType is the base of every rig component. A component that
	// is not connected to a rig is orphaned.
	ComponentType = schema.NewType("rigging.Component").Attrs(componentAttrs...).Orphaned(withoutRig).Build()

	// FKType is a forward kinematics chain between two joints
	FKType = schema.NewType("rigging.FK").Extends(ComponentType).Attrs(
		schema.Link(AttrStartJoint),
		schema.Link(AttrEndJoint),
	).Build()
)

// Types lists the rigging types in registration order
func Types() []*schema.Type {
	return []*schema.Type{SkeletonType, ActorType, ActiveActorType, RigType, ComponentType, FKType}
}

// Register adds the rigging types to r
func Register(r *schema.Registry) error {
	for _, t := range Types() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func withoutRig(inst schema.Instance) bool {
	v, err := inst.Get(AttrRig)
	return err == nil && v == nil
}
