package discovery

import (
	"context"
	"fmt"

	"osops-utils/pkg/errs"
	"osops-utils/pkg/model"
)

// Database vendors understood by ResolveDatabaseConnection.
const (
	VendorMySQL = "mysql"
)

// Well-known names of the managed MySQL master.
const (
	MySQLRole            = "mysql-master"
	MySQLServer          = "mysql"
	MySQLService         = "db"
	MySQLPort            = 3306
	MySQLRootUser        = "root"
	MySQLRootPasswordKey = "mysql.server_root_password"
)

// ResolveDatabaseConnection finds the database server for vendor. An
// unmanaged override on the current node wins without touching the registry.
// A nil connection means no database master has been deployed yet.
func (r *Resolver) ResolveDatabaseConnection(ctx context.Context, vendor string) (*model.DatabaseConnection, error) {
	if o, ok := r.self().Unmanaged[vendor]; ok {
		r.log().WithField("vendor", vendor).Info("using unmanaged database override")
		return &model.DatabaseConnection{
			Host:      o.Host,
			Port:      o.Port,
			Username:  o.Username,
			Password:  o.Password,
			Unmanaged: true,
		}, nil
	}
	if vendor != VendorMySQL {
		return nil, errs.New(errs.ErrUnsupportedVendor, true, "unsupported database vendor %q", vendor)
	}

	ep, err := r.ResolveAccessEndpoint(ctx, MySQLRole, MySQLServer, MySQLService)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, nil
	}
	pw, err := r.ResolveSettingsByRole(ctx, MySQLRole, MySQLRootPasswordKey)
	if err != nil {
		return nil, err
	}
	// The generic endpoint default means the db service declared no port.
	port := ep.Port
	if port == 0 || port == defaultPort {
		port = MySQLPort
	}
	conn := &model.DatabaseConnection{
		Host:     ep.Host,
		Port:     port,
		Username: MySQLRootUser,
	}
	if pw != nil {
		conn.Password = fmt.Sprint(pw)
	}
	return conn, nil
}
