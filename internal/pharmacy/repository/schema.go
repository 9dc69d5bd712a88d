package repository

// Migrations returns the pharmacy schema as ordered, idempotent statements.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			code VARCHAR(50) NOT NULL CONSTRAINT products_code_key UNIQUE,
			name VARCHAR(255) NOT NULL,
			expiry_threshold_days INT NOT NULL DEFAULT 30 CHECK (expiry_threshold_days >= 0),
			low_stock_threshold INT NOT NULL DEFAULT 0 CHECK (low_stock_threshold >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS stocks (
			id VARCHAR(64) PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL REFERENCES products(id),
			total_on_hand INT NOT NULL DEFAULT 0
				CONSTRAINT stocks_on_hand_nonnegative CHECK (total_on_hand >= 0),
			status VARCHAR(20) NOT NULL DEFAULT 'Out of Stock'
				CONSTRAINT stocks_status_valid CHECK (status IN ('Normal', 'Low Stock', 'Near Expiry', 'Expired', 'Out of Stock')),
			batch_sequence INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stocks_product_key UNIQUE (product_id)
		)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id VARCHAR(64) PRIMARY KEY,
			stock_id VARCHAR(64) NOT NULL REFERENCES stocks(id),
			product_id VARCHAR(64) NOT NULL REFERENCES products(id),
			batch_code VARCHAR(80) NOT NULL CONSTRAINT batches_batch_code_key UNIQUE,
			on_hand INT NOT NULL
				CONSTRAINT batches_on_hand_nonnegative CHECK (on_hand >= 0),
			expiry_date DATE NOT NULL,
			expiry_estimated BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL
				CONSTRAINT batches_status_valid CHECK (status IN ('Normal', 'Low Stock', 'Near Expiry', 'Expired', 'Out of Stock')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_stock_expiry ON batches(stock_id, expiry_date, id)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			reference VARCHAR(100) NOT NULL,
			status VARCHAR(30) NOT NULL DEFAULT 'Pending'
				CONSTRAINT orders_status_valid CHECK (status IN ('Pending', 'Partially Received', 'Received', 'Cancelled')),
			date_ordered TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			date_received TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS order_items (
			id VARCHAR(64) PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id VARCHAR(64) NOT NULL REFERENCES products(id),
			supplier_id VARCHAR(64) NOT NULL,
			quantity_ordered INT NOT NULL
				CONSTRAINT order_items_quantity_positive CHECK (quantity_ordered > 0),
			unit_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,

		`CREATE TABLE IF NOT EXISTS receipts (
			id VARCHAR(64) PRIMARY KEY,
			order_item_id VARCHAR(64) NOT NULL REFERENCES order_items(id),
			batch_id VARCHAR(64) REFERENCES batches(id) ON DELETE SET NULL,
			quantity_received INT NOT NULL
				CONSTRAINT receipts_quantity_positive CHECK (quantity_received > 0),
			expiry_date DATE,
			date_received TIMESTAMPTZ NOT NULL,
			received_by VARCHAR(255) NOT NULL,
			remarks TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_order_item ON receipts(order_item_id)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			seq BIGSERIAL UNIQUE,
			id VARCHAR(64) PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL REFERENCES products(id),
			batch_id VARCHAR(64) REFERENCES batches(id) ON DELETE SET NULL,
			batch_code VARCHAR(80),
			type VARCHAR(3) NOT NULL CHECK (type IN ('IN', 'OUT', 'ADJ')),
			quantity_change INT NOT NULL,
			on_hand_before INT NOT NULL,
			on_hand INT NOT NULL,
			reference_id VARCHAR(64),
			performed_by VARCHAR(255) NOT NULL,
			remarks TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_product ON ledger_entries(product_id, seq)`,

		// Ledger rows are append-only. The only permitted update is the
		// batch reference being cleared when its batch is deleted.
		`CREATE OR REPLACE FUNCTION ledger_entries_append_only()
		RETURNS TRIGGER AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				RAISE EXCEPTION 'ledger entries cannot be deleted';
			END IF;
			IF NEW.batch_id IS NOT NULL
				OR ROW(NEW.id, NEW.product_id, NEW.batch_code, NEW.type, NEW.quantity_change,
					NEW.on_hand_before, NEW.on_hand, NEW.reference_id, NEW.performed_by,
					NEW.remarks, NEW.created_at)
				IS DISTINCT FROM
				ROW(OLD.id, OLD.product_id, OLD.batch_code, OLD.type, OLD.quantity_change,
					OLD.on_hand_before, OLD.on_hand, OLD.reference_id, OLD.performed_by,
					OLD.remarks, OLD.created_at)
			THEN
				RAISE EXCEPTION 'ledger entries are immutable';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS ledger_entries_append_only ON ledger_entries`,
		`CREATE TRIGGER ledger_entries_append_only
			BEFORE UPDATE OR DELETE ON ledger_entries
			FOR EACH ROW EXECUTE FUNCTION ledger_entries_append_only()`,

		`CREATE TABLE IF NOT EXISTS order_events (
			seq BIGSERIAL UNIQUE,
			id VARCHAR(64) PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			previous_status VARCHAR(30) NOT NULL,
			new_status VARCHAR(30) NOT NULL,
			performed_by VARCHAR(255) NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id, seq)`,
	}
}
