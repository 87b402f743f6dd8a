package config

import "database/sql"

// Migrate creates the schema when missing. Every statement is idempotent so
// the bootstrap is safe to run on every start.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			commission_percent INT NOT NULL DEFAULT 10,
			disable_auto_halt TINYINT(1) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			username VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'user',
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_email (email),
			UNIQUE KEY uniq_username (username)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id CHAR(36) PRIMARY KEY,
			phone VARCHAR(50) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			KEY idx_expires (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS staff (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			company_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			role ENUM('DRIVER','CONDUCTOR') NOT NULL,
			status ENUM('AVAILABLE','ON_TRIP','ON_LEAVE') NOT NULL DEFAULT 'AVAILABLE',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_company (company_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS trips (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			company_id BIGINT NOT NULL,
			route_from VARCHAR(255) NOT NULL,
			route_to VARCHAR(255) NOT NULL,
			departure_time DATETIME NOT NULL,
			estimated_duration_min INT NOT NULL DEFAULT 0,
			total_slots INT NOT NULL,
			available_slots INT NOT NULL,
			price_per_seat BIGINT NOT NULL DEFAULT 0,
			status ENUM('SCHEDULED','DELAYED','BOARDING','DEPARTED','COMPLETED','CANCELLED') NOT NULL DEFAULT 'SCHEDULED',
			booking_halted TINYINT(1) NOT NULL DEFAULT 0,
			halt_reason VARCHAR(32) NOT NULL DEFAULT '',
			halt_override ENUM('NONE','TRIP_DISABLE') NOT NULL DEFAULT 'NONE',
			report_generated TINYINT(1) NOT NULL DEFAULT 0,
			driver_id BIGINT NULL,
			conductor_id BIGINT NULL,
			actual_departure_time DATETIME NULL,
			actual_arrival_time DATETIME NULL,
			tracking_active TINYINT(1) NOT NULL DEFAULT 0,
			tracking_token CHAR(36) NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_company (company_id),
			KEY idx_status_departure (status, departure_time)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			code CHAR(36) NOT NULL,
			trip_id BIGINT NOT NULL,
			user_id BIGINT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			status ENUM('PENDING','PAID','CANCELLED') NOT NULL DEFAULT 'PENDING',
			passenger_count INT NOT NULL,
			total_amount BIGINT NOT NULL DEFAULT 0,
			company_share BIGINT NOT NULL DEFAULT 0,
			platform_fee BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_code (code),
			KEY idx_trip_status (trip_id, status),
			KEY idx_user (user_id),
			KEY idx_status_created (status, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS passengers (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			booking_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			seat_number INT NOT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			id_number VARCHAR(100) NOT NULL DEFAULT '',
			is_child TINYINT(1) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			KEY idx_booking (booking_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS payments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			booking_id BIGINT NOT NULL,
			status ENUM('PENDING','SUCCESS','TIMEOUT','CANCELLED') NOT NULL DEFAULT 'PENDING',
			transaction_id CHAR(36) NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_txn (transaction_id),
			KEY idx_booking (booking_id),
			KEY idx_status_created (status, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			actor VARCHAR(100) NOT NULL,
			action VARCHAR(64) NOT NULL,
			trip_id BIGINT NULL,
			company_id BIGINT NULL,
			detail JSON NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			KEY idx_trip (trip_id),
			KEY idx_action (action)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS tracking_positions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			trip_id BIGINT NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			recorded_at DATETIME NOT NULL,
			KEY idx_trip_recorded (trip_id, recorded_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
