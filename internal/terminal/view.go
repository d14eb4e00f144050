package terminal

import (
	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

// View is the job list a device terminal shows
type View struct {
	Device string
	Path   string
	Roles  []models.UserRole
	Cutter bool
}

// NewView picks the spreader or cutter view for the device of username
func NewView(username string) (View, error) {
	device, err := access.DeviceFor(username)
	if err != nil {
		return View{}, err
	}

	if access.IsCutterDevice(device) {
		return View{
			Device: device,
			Path:   access.CutterHomePath,
			Roles:  []models.UserRole{models.RoleCutter},
			Cutter: true,
		}, nil
	}
	return View{
		Device: device,
		Path:   access.SpreaderHomePath,
		Roles:  []models.UserRole{models.RoleSpreader},
	}, nil
}

// Authorize runs the route guard for this view
func (v View) Authorize(session access.Snapshot) access.Decision {
	return access.Decide(session, v.Path, v.Roles)
}

// OperatorType is the kind of operator working this view
func (v View) OperatorType() models.OperatorType {
	if v.Cutter {
		return models.OperatorCutter
	}
	return models.OperatorSpreader
}
