package sqlinline

// QLockLedgerUser serializes ledger writes for one user until the
// surrounding transaction ends.
const QLockLedgerUser = `--sql c30b4f26-cb66-4d09-aa14-4dcf47450e6a
select pg_advisory_xact_lock(hashtext('credit_ledger:' || $1::text));
`

const QSelectLedgerBalance = `--sql 779a143d-1c38-499b-b63e-3561ae46a9dc
select coalesce(sum(delta), 0)::bigint
from credit_ledger
where user_id = $1::text;
`

const QInsertLedgerEntry = `--sql 5b0347b3-6eec-44fa-83b6-ce38114c15f5
insert into credit_ledger (id, user_id, delta, reason, ref_type, ref_id)
values (
  $1::uuid,
  $2::text,
  $3::bigint,
  $4::text,
  nullif($5::text, ''),
  nullif($6::text, '')
)
returning created_at;
`

const QListLedgerEntries = `--sql 93463715-fbdc-452e-9395-448a8fa73cef
select
  id::text,
  user_id,
  delta,
  reason,
  coalesce(ref_type, ''),
  coalesce(ref_id, ''),
  created_at
from credit_ledger
where user_id = $1::text
order by created_at desc, id desc
limit $2::int;
`

const QSelectLedgerEntryByRef = `--sql 6873495a-3661-47a8-9435-5114d5fa32c5
select
  id::text,
  user_id,
  delta,
  reason,
  coalesce(ref_type, ''),
  coalesce(ref_id, ''),
  created_at
from credit_ledger
where reason = $1::text
  and ref_type = $2::text
  and ref_id = $3::text
limit 1;
`
